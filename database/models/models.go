package models

import "github.com/jinzhu/gorm"

// Verdict result of one detection pass
type Verdict struct {
	gorm.Model
	ScanID     string `gorm:"type:varchar(64);unique_index"`
	Target     string
	TokenField string
	Token      string
	Detected   string
	Raw        string `gorm:"type:text"`
}

// Flaw one probe result of a verdict
type Flaw struct {
	gorm.Model
	ScanID string `gorm:"index"`
	Code   string
	Name   string
	Status string
	Leaked string
	Reason string
}

// User credentials of the api server
type User struct {
	gorm.Model
	Username string `gorm:"unique_index"`
	Password string
}
