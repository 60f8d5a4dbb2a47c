package matching

import "errors"

var (
	// У услуги нет кода навыка: подобрать исполнителя невозможно.
	ErrUnconfigurableService = errors.New("service has no skill code")
	ErrServiceNotFound       = errors.New("service not found")
	// Не удалось определить координаты исполнителя; в подборе это причина пропуска, а не ошибка.
	ErrNotLocatable = errors.New("freelancer location cannot be resolved")
	// Пустой результат подбора. Возвращается вызывающему как исход, а не выбрасывается изнутри.
	ErrNoEligibleCandidates = errors.New("no eligible candidates")
	ErrInvalidRequest       = errors.New("invalid candidate request")
)
