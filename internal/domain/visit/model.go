package visit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageFrontDesk Stage = "front_desk"
	StageNurse     Stage = "nurse"
	StageDoctor    Stage = "doctor"
	StageLab       Stage = "lab"
	StagePharmacy  Stage = "pharmacy"
	StageBilling   Stage = "billing"
	StageReturned  Stage = "returned_to_front_desk"
	StageCompleted Stage = "completed"
)

// WorkStages are the stages a visit can occupy, in the order they are
// rendered. StageCompleted is a handoff target only.
var WorkStages = []Stage{
	StageFrontDesk, StageNurse, StageDoctor, StageLab,
	StagePharmacy, StageBilling, StageReturned,
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type VitalSigns struct {
	BloodPressure    string   `json:"bloodPressure,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	Pulse            *int     `json:"pulse,omitempty"`
	RespiratoryRate  *int     `json:"respiratoryRate,omitempty"`
	OxygenSaturation *int     `json:"oxygenSaturation,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
}

// StageRecord is the clock-in/out field group for one stage. Vitals are only
// kept on the nurse stage and diagnosis only on the doctor stage.
type StageRecord struct {
	ClockedInBy  *uuid.UUID  `json:"clockedInBy"`
	ClockedInAt  *time.Time  `json:"clockedInAt"`
	ClockedOutBy *uuid.UUID  `json:"clockedOutBy"`
	ClockedOutAt *time.Time  `json:"clockedOutAt"`
	Notes        string      `json:"notes,omitempty"`
	NextAction   string      `json:"nextAction,omitempty"`
	VitalSigns   *VitalSigns `json:"vitalSigns,omitempty"`
	Diagnosis    string      `json:"diagnosis,omitempty"`
}

func (r *StageRecord) ClockedIn() bool {
	return r != nil && r.ClockedInAt != nil
}

// StageLog holds one record per stage. Stages the visit has not entered are
// absent and serialize as null.
type StageLog map[Stage]*StageRecord

func (l StageLog) MarshalJSON() ([]byte, error) {
	out := make(map[Stage]*StageRecord, len(WorkStages))
	for _, s := range WorkStages {
		out[s] = l[s]
	}
	return json.Marshal(out)
}

type Action string

const (
	ActionClockIn  Action = "clock_in"
	ActionClockOut Action = "clock_out"
	ActionHandoff  Action = "handoff"
	ActionCancel   Action = "cancel"
)

// Event is an append-only history entry. Stage records are reset when a
// visit re-enters a stage; the history is not.
type Event struct {
	Stage     Stage     `json:"stage"`
	Action    Action    `json:"action"`
	StaffID   uuid.UUID `json:"staffId"`
	At        time.Time `json:"at"`
	FromStage Stage     `json:"fromStage,omitempty"`
	ToStage   Stage     `json:"toStage,omitempty"`
}

type Visit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	VisitNumber   string     `db:"visit_number" json:"visitNumber"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patientId"`
	BranchID      uuid.UUID  `db:"branch_id" json:"branchId"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointmentId,omitempty"`
	CurrentStage  Stage      `db:"current_stage" json:"currentStage"`
	Status        Status     `db:"status" json:"status"`
	LabOnly       bool       `db:"lab_only" json:"labOnly"`
	Stages        StageLog   `db:"stages" json:"stages"`
	History       []Event    `db:"history" json:"history"`
	CancelReason  *string    `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedBy     uuid.UUID  `db:"created_by" json:"createdBy"`
	Version       int        `db:"version" json:"version"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt   *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// Filter narrows queue listings.
type Filter struct {
	Stage     Stage
	Status    Status
	BranchID  *uuid.UUID
	PatientID *uuid.UUID
}

// Record returns the record for stage, creating it when missing.
func (v *Visit) Record(stage Stage) *StageRecord {
	if v.Stages == nil {
		v.Stages = StageLog{}
	}
	r := v.Stages[stage]
	if r == nil {
		r = &StageRecord{}
		v.Stages[stage] = r
	}
	return r
}

// EverClockedIn reports whether anyone clocked in at stage during this visit,
// including occupancies that were later reset by a re-entry.
func (v *Visit) EverClockedIn(stage Stage) bool {
	if v.Stages[stage].ClockedIn() {
		return true
	}
	for _, e := range v.History {
		if e.Stage == stage && e.Action == ActionClockIn {
			return true
		}
	}
	return false
}

func (v *Visit) InProgress() bool {
	return v.Status == StatusInProgress
}

func (v *Visit) log(e Event) {
	v.History = append(v.History, e)
}
