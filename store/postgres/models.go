package postgres

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/grove"

	"github.com/xraph/fundledger/commitment"
	"github.com/xraph/fundledger/id"
	"github.com/xraph/fundledger/project"
	"github.com/xraph/fundledger/types"
)

// ==================== Project models ====================

type projectModel struct {
	grove.BaseModel `grove:"table:fundledger_projects"`

	ID               string            `grove:"id,pk"`
	OwnerID          string            `grove:"owner_id"`
	Title            string            `grove:"title"`
	Currency         string            `grove:"currency"`
	FundingGoalCents int64             `grove:"funding_goal_cents"`
	Version          int64             `grove:"version"`
	Metadata         map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt        time.Time         `grove:"created_at"`
	UpdatedAt        time.Time         `grove:"updated_at"`
}

func toProjectModel(p *project.Project) *projectModel {
	return &projectModel{
		ID:               p.ID.String(),
		OwnerID:          p.OwnerID,
		Title:            p.Title,
		Currency:         p.Currency,
		FundingGoalCents: p.FundingGoal.Amount,
		Version:          p.Version,
		Metadata:         p.Metadata,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func fromProjectModel(m *projectModel) (*project.Project, error) {
	projectID, err := id.ParseProjectID(m.ID)
	if err != nil {
		return nil, err
	}

	return &project.Project{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          projectID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Currency:    m.Currency,
		FundingGoal: types.New(m.FundingGoalCents, m.Currency),
		Version:     m.Version,
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Commitment models ====================

// Shares are stored in hundredths of a percent (3.33% as 333).
type commitmentModel struct {
	grove.BaseModel `grove:"table:fundledger_commitments"`

	ID          string            `grove:"id,pk"`
	ProjectID   string            `grove:"project_id"`
	InvestorID  string            `grove:"investor_id"`
	AmountCents int64             `grove:"amount_cents"`
	Currency    string            `grove:"currency"`
	ShareBP     int64             `grove:"share_bp"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time         `grove:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"`
}

func toCommitmentModel(c *commitment.Commitment) *commitmentModel {
	return &commitmentModel{
		ID:          c.ID.String(),
		ProjectID:   c.ProjectID.String(),
		InvestorID:  c.InvestorID,
		AmountCents: c.Amount.Amount,
		Currency:    c.Amount.Currency,
		ShareBP:     c.InvestmentShare.Shift(2).IntPart(),
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromCommitmentModel(m *commitmentModel) (*commitment.Commitment, error) {
	commitmentID, err := id.ParseCommitmentID(m.ID)
	if err != nil {
		return nil, err
	}
	projectID, err := id.ParseProjectID(m.ProjectID)
	if err != nil {
		return nil, err
	}

	return &commitment.Commitment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              commitmentID,
		ProjectID:       projectID,
		InvestorID:      m.InvestorID,
		Amount:          types.New(m.AmountCents, m.Currency),
		InvestmentShare: decimal.New(m.ShareBP, -2),
		Metadata:        m.Metadata,
	}, nil
}

func fromCommitmentModels(models []commitmentModel) ([]*commitment.Commitment, error) {
	result := make([]*commitment.Commitment, len(models))
	for i := range models {
		c, err := fromCommitmentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}
