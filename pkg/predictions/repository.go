package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meditriage/platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPredictionNotFound = errors.New("prediction not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionModel{})
}

func (r *Repository) Save(ctx context.Context, result models.PredictionResult) (*PredictionModel, error) {
	scores := make(map[string]interface{}, len(result.DepartmentScores))
	for dept, score := range result.DepartmentScores {
		scores[dept] = score
	}
	explainability, err := json.Marshal(result.Explainability)
	if err != nil {
		return nil, err
	}

	row := &PredictionModel{
		ID:                    uuid.New(),
		VisitID:               result.VisitID,
		RiskLevel:             result.RiskLevel,
		RiskScore:             result.RiskScore,
		RecommendedDepartment: result.RecommendedDepartment,
		DepartmentScores:      datatypes.JSONMap(scores),
		Explainability:        datatypes.JSON(explainability),
		CreatedAt:             time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *Repository) LatestByVisit(ctx context.Context, visitID int64) (*PredictionModel, error) {
	var row PredictionModel
	result := r.db.WithContext(ctx).
		Where("visit_id = ?", visitID).
		Order("created_at desc").
		First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrPredictionNotFound
	}
	return &row, result.Error
}

// ListUnpredictedVisits returns visit ids that have no stored
// prediction yet, oldest first.
func (r *Repository) ListUnpredictedVisits(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Table("patient_visits").
		Joins("LEFT JOIN triage_predictions ON triage_predictions.visit_id = patient_visits.visit_id").
		Where("triage_predictions.id IS NULL").
		Order("patient_visits.visit_id asc").
		Limit(limit).
		Pluck("patient_visits.visit_id", &ids).Error
	return ids, err
}

// Result converts a stored row back to the wire shape.
func (row *PredictionModel) Result() (models.PredictionResult, error) {
	scores := make(map[string]float64, len(row.DepartmentScores))
	for dept, value := range row.DepartmentScores {
		if f, ok := value.(float64); ok {
			scores[dept] = f
		}
	}
	var report models.ExplainabilityReport
	if len(row.Explainability) > 0 {
		if err := json.Unmarshal(row.Explainability, &report); err != nil {
			return models.PredictionResult{}, err
		}
	}
	return models.PredictionResult{
		VisitID:               row.VisitID,
		RiskLevel:             row.RiskLevel,
		RiskScore:             row.RiskScore,
		RecommendedDepartment: row.RecommendedDepartment,
		DepartmentScores:      scores,
		Explainability:        report,
	}, nil
}
