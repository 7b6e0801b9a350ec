package visits

import "time"

type Patient struct {
	PatientID int64     `gorm:"primaryKey;column:patient_id"`
	Age       int       `gorm:"column:age"`
	Gender    string    `gorm:"column:gender"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Patient) TableName() string {
	return "patients"
}

type Visit struct {
	VisitID        int64     `gorm:"primaryKey;column:visit_id"`
	PatientID      int64     `gorm:"column:patient_id;index"`
	ChiefComplaint string    `gorm:"column:chief_complaint"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (Visit) TableName() string {
	return "patient_visits"
}

type Vitals struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	VisitID     int64     `gorm:"column:visit_id;index"`
	BPSystolic  *float64  `gorm:"column:bp_systolic"`
	BPDiastolic *float64  `gorm:"column:bp_diastolic"`
	HeartRate   *float64  `gorm:"column:heart_rate"`
	Temperature *float64  `gorm:"column:temperature"`
	RecordedAt  time.Time `gorm:"column:recorded_at"`
}

func (Vitals) TableName() string {
	return "vitals"
}

type Symptom struct {
	ID            int64  `gorm:"primaryKey;column:id"`
	VisitID       int64  `gorm:"column:visit_id;index"`
	SymptomName   string `gorm:"column:symptom_name"`
	SeverityScore int    `gorm:"column:severity_score"`
}

func (Symptom) TableName() string {
	return "visit_symptoms"
}

type Condition struct {
	ID            int64  `gorm:"primaryKey;column:id"`
	PatientID     int64  `gorm:"column:patient_id;index"`
	ConditionName string `gorm:"column:condition_name"`
	IsChronic     bool   `gorm:"column:is_chronic"`
}

func (Condition) TableName() string {
	return "medical_history"
}
