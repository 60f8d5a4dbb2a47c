package model

import "github.com/google/uuid"

// ensureID проставляет UUID до вставки: и в Postgres, и в SQLite ключ генерируется на стороне приложения.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
