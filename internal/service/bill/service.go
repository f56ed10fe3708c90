package bill

import (
	"context"
	"sort"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
)

// Service exposes read access to bills. Bills are only created by the
// discharge workflow and never change afterwards.
type Service struct {
	repo repository.BillRepository
}

func NewService(repo repository.BillRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (*model.Bill, error) {
	return s.repo.Get(ctx, id)
}

// ListForPatient returns the patient's bills, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*model.Bill, error) {
	bills, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Bill, 0, len(bills))
	for _, b := range bills {
		if b.PatientID == patientID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
