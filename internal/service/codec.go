package service

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/model"
)

// Поля запросов и ответов: snake_case, как в proto-контрактах платформы.

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	raw := req.GetFields()[name].GetStringValue()
	if raw == "" {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s must be a UUID", name)
	}
	return id, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func intField(req *structpb.Struct, name string) int {
	return int(req.GetFields()[name].GetNumberValue())
}

// timeField разбирает необязательную метку RFC 3339; пустое поле даёт нулевое время.
func timeField(req *structpb.Struct, name string) (time.Time, error) {
	raw := stringField(req, name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be RFC 3339", name)
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func mapMatchResult(res assignment.MatchResult) map[string]any {
	out := map[string]any{
		"outcome":    string(res.Outcome),
		"booking_id": res.BookingID.String(),
		"claimable":  res.Claimable,
	}
	if res.FreelancerID != uuid.Nil {
		out["freelancer_id"] = res.FreelancerID.String()
		out["distance_km"] = res.DistanceKm
	}
	if res.AssignmentID != uuid.Nil {
		out["assignment_id"] = res.AssignmentID.String()
	}
	if !res.ExpiresAt.IsZero() {
		out["expires_at"] = formatTime(res.ExpiresAt)
	}
	return out
}

func mapRespondResult(res assignment.RespondResult) map[string]any {
	out := map[string]any{
		"assignment_id": res.AssignmentID.String(),
		"booking_id":    res.BookingID.String(),
		"status":        string(res.Status),
	}
	if res.Next != nil {
		out["next"] = mapMatchResult(*res.Next)
	}
	return out
}

func mapCandidate(c matching.Candidate) any {
	return map[string]any{
		"freelancer_id": c.FreelancerID.String(),
		"name":          c.Name,
		"distance_km":   c.DistanceKm,
	}
}

func mapAssignment(a model.BookingAssignment) any {
	out := map[string]any{
		"id":            a.ID.String(),
		"booking_id":    a.BookingID.String(),
		"freelancer_id": a.FreelancerID.String(),
		"status":        string(a.Status),
		"offered_at":    formatTime(a.OfferedAt),
		"expires_at":    formatTime(a.ExpiresAt),
	}
	if a.RespondedAt != nil {
		out["responded_at"] = formatTime(*a.RespondedAt)
	}
	return out
}

func mapHistoryPage(p calendar.Page[model.BookingAssignment]) map[string]any {
	items := calendar.MapPage(p, mapAssignment).Items
	return map[string]any{
		"items":     items,
		"page":      p.Page,
		"page_size": p.PageSize,
		"total":     p.Total,
		"has_next":  p.HasNext,
		"has_prev":  p.HasPrev,
	}
}

func toStruct(v map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
