package predictions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PredictionModel is the persisted form of one inference result.
// Department scores are stored as a JSON map; the explainability
// report is stored as raw JSON to preserve its descending-magnitude
// key order.
type PredictionModel struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	VisitID               int64             `gorm:"column:visit_id;index"`
	RiskLevel             string            `gorm:"column:risk_level"`
	RiskScore             float64           `gorm:"column:risk_score"`
	RecommendedDepartment string            `gorm:"column:recommended_department"`
	DepartmentScores      datatypes.JSONMap `gorm:"column:department_scores"`
	Explainability        datatypes.JSON    `gorm:"column:explainability"`
	CreatedAt             time.Time         `gorm:"column:created_at"`
}

func (PredictionModel) TableName() string {
	return "triage_predictions"
}
