package store

import (
	"encoding/json"
	"time"
)

// Unit status values. Transitions happen only through guarded updates.
const (
	UnitIdle     = "idle"
	UnitWorking  = "working"
	UnitDelivery = "delivery"
	UnitFishing  = "fishing"
)

// Session status values.
const (
	SessionInProgress    = "in_progress"
	SessionWaitingChoice = "waiting_choice"
	SessionCompleted     = "completed"
	SessionExpired       = "expired"
)

// Session kinds.
const (
	KindDelivery = "delivery"
	KindFishing  = "fishing"
	KindVisitor  = "visitor"
)

// Ledger directions.
const (
	DirectionEarn  = "earn"
	DirectionSpend = "spend"
)

type Account struct {
	ID                 string
	Gold               int64
	Gems               int64
	Inventory          map[string]int64
	ShopLevel          int
	FacilityLevel      int
	PendingOfflineGold int64
	FreeSpinUsed       bool
	AdSpins            int
	PaidSpins          int
	WheelDay           string // YYYY-MM-DD of the last counter reset
	Active             bool
	LastActiveAt       time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type UnitAttributes struct {
	Cooking int `json:"cooking"`
	Speed   int `json:"speed"`
	Luck    int `json:"luck"`
}

type WorkUnit struct {
	ID         string
	OwnerID    string
	BreedID    string
	Name       string
	Rarity     string
	Status     string
	Attributes UnitAttributes
	Fatigue    int
	Mood       int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Session struct {
	ID             string
	OwnerID        string
	Kind           string
	UnitIDs        []string
	Status         string
	StartTime      time.Time
	EndTime        time.Time
	LuckBonus      float64
	EventID        string
	Choices        json.RawMessage
	ChoiceTimeout  *time.Time
	TimeoutAction  string
	SelectedChoice string
	Result         json.RawMessage
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

type LedgerEntry struct {
	ID               string
	AccountID        string
	Direction        string
	Currency         string
	ItemID           string
	Amount           int64
	Reason           string
	RelatedSessionID string
	BalanceBefore    int64
	BalanceAfter     int64
	CreatedAt        time.Time
}

type ConfigDocument struct {
	ID            string
	ConfigType    string
	Version       string
	Data          json.RawMessage
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
	CreatedAt     time.Time
}

type DrawReceipt struct {
	OwnerID    string
	RequestKey string
	Operation  string
	Response   json.RawMessage
	CreatedAt  time.Time
}
