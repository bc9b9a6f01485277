package org

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftNight     = "night"
)

type Employee struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	FactoryID string    `json:"factoryId"`
	GroupID   string    `json:"groupId,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Factory struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Code               string    `json:"code"`
	DailyApprovalLimit *int      `json:"dailyApprovalLimit,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type Group struct {
	ID                string    `json:"id"`
	FactoryID         string    `json:"factoryId"`
	Name              string    `json:"name"`
	Shift             string    `json:"shift"`
	PrimaryLeaderID   string    `json:"primaryLeaderId,omitempty"`
	SecondaryLeaderID string    `json:"secondaryLeaderId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Holiday with an empty FactoryID applies to every factory.
type Holiday struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Name      string    `json:"name"`
	FactoryID string    `json:"factoryId,omitempty"`
}

func (h Holiday) AppliesTo(factoryID string) bool {
	return h.FactoryID == "" || factoryID == "" || h.FactoryID == factoryID
}

type EmployeeFilter struct {
	Query      string
	FactoryID  string
	GroupID    string
	ActiveOnly bool
}

type EmployeeInput struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=50"`
	Role      string `json:"role" validate:"omitempty,oneof=employee leader admin"`
	FactoryID string `json:"factoryId" validate:"required,uuid"`
	GroupID   string `json:"groupId" validate:"omitempty,uuid"`
	Active    *bool  `json:"active"`
	Password  string `json:"password" validate:"omitempty,min=8"`
}

type FactoryInput struct {
	Name               string `json:"name" validate:"required,max=200"`
	Code               string `json:"code" validate:"required,max=32"`
	DailyApprovalLimit *int   `json:"dailyApprovalLimit" validate:"omitempty,gte=0"`
}

type GroupInput struct {
	FactoryID         string `json:"factoryId" validate:"required,uuid"`
	Name              string `json:"name" validate:"required,max=200"`
	Shift             string `json:"shift" validate:"required,oneof=morning afternoon night"`
	PrimaryLeaderID   string `json:"primaryLeaderId" validate:"omitempty,uuid"`
	SecondaryLeaderID string `json:"secondaryLeaderId" validate:"omitempty,uuid"`
}

type HolidayInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required,max=200"`
	FactoryID string `json:"factoryId" validate:"omitempty,uuid"`
}

type ImportResult struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Errors  []ImportIssue `json:"errors,omitempty"`
}

type ImportIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
