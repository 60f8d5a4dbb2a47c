package service

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/logger"
	"github.com/Leganyst/booking-matcher/internal/matching"
)

// MatchingService: gRPC-обёртка над координатором назначений и подбором.
type MatchingService struct {
	coord      *assignment.Coordinator
	finder     *matching.CandidateFinder
	logg       *logger.Logger
	defaultLoc *time.Location
	now        func() time.Time
}

type MatchingServiceParams struct {
	Coordinator *assignment.Coordinator
	Finder      *matching.CandidateFinder
	Logger      *logger.Logger
	// Зона для SearchCandidates, если в запросе её нет.
	DefaultLocation *time.Location
}

func NewMatchingService(p MatchingServiceParams) *MatchingService {
	s := &MatchingService{
		coord:      p.Coordinator,
		finder:     p.Finder,
		logg:       p.Logger,
		defaultLoc: p.DefaultLocation,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.defaultLoc == nil {
		s.defaultLoc = time.UTC
	}
	return s
}

// RequestMatch запускает подбор для pending-брони. Пустой подбор: не ошибка, а исход noCandidates.
func (s *MatchingService) RequestMatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	res, err := s.coord.RequestMatch(ctx, bookingID)
	if err != nil {
		return nil, toStatus("request match", err)
	}
	return toStruct(mapMatchResult(res))
}

// RespondToOffer принимает ответ исполнителя: decision = accept | reject.
func (s *MatchingService) RespondToOffer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	assignmentID, err := uuidField(req, "assignment_id")
	if err != nil {
		return nil, err
	}
	decision, err := assignment.ParseDecision(stringField(req, "decision"))
	if err != nil {
		return nil, toStatus("respond to offer", err)
	}
	res, err := s.coord.Respond(ctx, assignmentID, decision)
	if err != nil {
		return nil, toStatus("respond to offer", err)
	}
	return toStruct(mapRespondResult(res))
}

// SweepExpiredOffers истекает просроченные офферы. Без now берётся текущее время.
func (s *MatchingService) SweepExpiredOffers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	now, err := timeField(req, "now")
	if err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = s.now()
	}
	expired, err := s.coord.SweepExpiredOffers(ctx, now)
	if err != nil {
		// Частичный успех: часть офферов могла истечь.
		s.logg.Error(s.logg.WithField(ctx, "expired", expired), "sweep finished with errors", err)
		return nil, toStatus("sweep expired offers", err)
	}
	return toStruct(map[string]any{"expired": expired})
}

func (s *MatchingService) FindCandidates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	cands, err := s.coord.FindCandidates(ctx, bookingID)
	if err != nil {
		return nil, toStatus("find candidates", err)
	}
	items := make([]any, 0, len(cands))
	for _, c := range cands {
		items = append(items, mapCandidate(c))
	}
	return toStruct(map[string]any{"booking_id": bookingID.String(), "candidates": items})
}

// SearchCandidates: подбор по произвольным параметрам, без брони и без побочных эффектов.
func (s *MatchingService) SearchCandidates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	serviceID, err := uuidField(req, "service_id")
	if err != nil {
		return nil, err
	}
	date, err := calendar.ParseDate(stringField(req, "date"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "date: %v", err)
	}
	loc := s.defaultLoc
	if tz := stringField(req, "time_zone"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "time_zone: %v", err)
		}
	}
	fields := req.GetFields()
	for _, name := range []string{"start_minute", "duration_min", "lat", "lng"} {
		if _, ok := fields[name]; !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
	}

	cands, err := s.finder.FindCandidates(ctx, matching.CandidateRequest{
		Date:        date,
		StartMinute: intField(req, "start_minute"),
		DurationMin: intField(req, "duration_min"),
		Lat:         fields["lat"].GetNumberValue(),
		Lng:         fields["lng"].GetNumberValue(),
		ServiceID:   serviceID,
		Location:    loc,
	})
	if err != nil {
		return nil, toStatus("search candidates", err)
	}
	items := make([]any, 0, len(cands))
	for _, c := range cands {
		items = append(items, mapCandidate(c))
	}
	return toStruct(map[string]any{"candidates": items})
}

func (s *MatchingService) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	reason := stringField(req, "reason")
	if reason == "" {
		reason = "cancelled by request"
	}
	if err := s.coord.Cancel(ctx, bookingID, reason); err != nil {
		return nil, toStatus("cancel booking", err)
	}
	return toStruct(map[string]any{"booking_id": bookingID.String(), "status": "cancelled"})
}

func (s *MatchingService) ClaimBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	freelancerID, err := uuidField(req, "freelancer_id")
	if err != nil {
		return nil, err
	}
	res, err := s.coord.Claim(ctx, bookingID, freelancerID)
	if err != nil {
		return nil, toStatus("claim booking", err)
	}
	return toStruct(mapMatchResult(res))
}

func (s *MatchingService) StartBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	if err := s.coord.Start(ctx, bookingID); err != nil {
		return nil, toStatus("start booking", err)
	}
	return toStruct(map[string]any{"booking_id": bookingID.String(), "status": "in_progress"})
}

func (s *MatchingService) CompleteBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	if err := s.coord.Complete(ctx, bookingID); err != nil {
		return nil, toStatus("complete booking", err)
	}
	return toStruct(map[string]any{"booking_id": bookingID.String(), "status": "completed"})
}

// AssignmentHistory: журнал офферов брони, новые первыми.
func (s *MatchingService) AssignmentHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := uuidField(req, "booking_id")
	if err != nil {
		return nil, err
	}
	page, pageSize := intField(req, "page"), intField(req, "page_size")
	if page < 0 || pageSize < 0 {
		return nil, status.Error(codes.InvalidArgument, "page and page_size must not be negative")
	}
	p, err := s.coord.History(ctx, bookingID, page, pageSize)
	if err != nil {
		return nil, toStatus("assignment history", err)
	}
	return toStruct(mapHistoryPage(p))
}
