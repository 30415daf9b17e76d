package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/portakall/retromeet/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Project {
	tb.Helper()
	p := &types.Project{Name: name}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedParticipant(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Participant {
	tb.Helper()
	p := &types.Participant{Name: name}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed participant: %v", err)
	}
	return p
}

func SeedMembership(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID, participantID uint) {
	tb.Helper()
	row := &types.ProjectParticipant{ProjectID: projectID, ParticipantID: participantID}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed membership: %v", err)
	}
}

// SeedResponse inserts a row stamped with at. Pass increasing values to fix
// creation order.
func SeedResponse(tb testing.TB, ctx context.Context, tx *gorm.DB, participantID, projectID uint, question, answer string, refined *string, at time.Time) *types.Response {
	tb.Helper()
	r := &types.Response{
		ParticipantID:    participantID,
		ProjectID:        projectID,
		Question:         question,
		OriginalResponse: answer,
		RefinedResponse:  refined,
		CreatedAt:        at,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed response: %v", err)
	}
	return r
}

func Ptr[T any](v T) *T { return &v }
