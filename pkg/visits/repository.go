package visits

import (
	"context"
	"errors"
	"strings"

	"github.com/meditriage/platform/pkg/common/models"
	"gorm.io/gorm"
)

var ErrVisitNotFound = errors.New("visit not found")

var (
	cardiacKeywords     = []string{"coronary", "heart", "cardiac", "hypertension", "arrhythmia"}
	respiratoryKeywords = []string{"copd", "asthma", "tuberculosis", "respiratory", "lung"}
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Patient{}, &Visit{}, &Vitals{}, &Symptom{}, &Condition{})
}

// GetVisitRecord assembles the raw field map for one visit from the
// visit, patient, vitals, symptom and history rows. Fields a visit has
// no data for are omitted so the feature extractor applies its
// documented defaults.
func (r *Repository) GetVisitRecord(ctx context.Context, visitID int64) (models.RawVisitRecord, error) {
	var visit Visit
	result := r.db.WithContext(ctx).First(&visit, "visit_id = ?", visitID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrVisitNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	record := models.RawVisitRecord{
		"visit_id":        visit.VisitID,
		"chief_complaint": visit.ChiefComplaint,
	}

	var patient Patient
	if err := r.db.WithContext(ctx).First(&patient, "patient_id = ?", visit.PatientID).Error; err == nil {
		record["age"] = patient.Age
		record["gender"] = patient.Gender
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var vitals Vitals
	err := r.db.WithContext(ctx).
		Where("visit_id = ?", visitID).
		Order("recorded_at desc").
		First(&vitals).Error
	if err == nil {
		setIfPresent(record, "bp_systolic", vitals.BPSystolic)
		setIfPresent(record, "bp_diastolic", vitals.BPDiastolic)
		setIfPresent(record, "heart_rate", vitals.HeartRate)
		setIfPresent(record, "temperature", vitals.Temperature)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var symptoms []Symptom
	if err := r.db.WithContext(ctx).Where("visit_id = ?", visitID).Find(&symptoms).Error; err != nil {
		return nil, err
	}
	if len(symptoms) > 0 {
		chestPain := 0
		maxSeverity := 0
		for _, s := range symptoms {
			if s.SeverityScore > maxSeverity {
				maxSeverity = s.SeverityScore
			}
			if strings.Contains(strings.ToLower(s.SymptomName), "chest") && s.SeverityScore > chestPain {
				chestPain = s.SeverityScore
			}
		}
		record["chest_pain_severity"] = chestPain
		record["max_severity"] = maxSeverity
		record["symptom_count"] = len(symptoms)
	}

	var history []Condition
	if err := r.db.WithContext(ctx).Where("patient_id = ?", visit.PatientID).Find(&history).Error; err != nil {
		return nil, err
	}
	if len(history) > 0 {
		record["comorbidities_count"] = len(history)
		record["cardiac_history"] = flagForKeywords(history, cardiacKeywords)
		record["respiratory_history"] = flagForKeywords(history, respiratoryKeywords)
		record["diabetes_status"] = flagForKeywords(history, []string{"diabetes"})
		chronic := 0
		for _, c := range history {
			if c.IsChronic {
				chronic++
			}
		}
		record["chronic_conditions"] = chronic
	}

	return record, nil
}

// ListVisitIDs returns visit ids in insertion order, optionally after
// a cursor, for backfill batching.
func (r *Repository) ListVisitIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&Visit{}).
		Where("visit_id > ?", afterID).
		Order("visit_id asc").
		Limit(limit).
		Pluck("visit_id", &ids).Error
	return ids, err
}

func setIfPresent(record models.RawVisitRecord, field string, value *float64) {
	if value != nil {
		record[field] = *value
	}
}

func flagForKeywords(history []Condition, keywords []string) int {
	for _, condition := range history {
		name := strings.ToLower(condition.ConditionName)
		for _, keyword := range keywords {
			if strings.Contains(name, keyword) {
				return 1
			}
		}
	}
	return 0
}
