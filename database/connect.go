package database

import (
	"github.com/QRLogin-sec/QRLChecker/database/models"
	"github.com/jinzhu/gorm"
	// sqlite dialect
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// DB global DB variable
var DB *gorm.DB

// InitDB init DB connection
func InitDB(sqlitePath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, err
	}
	DB = db
	DB.AutoMigrate(&models.Verdict{}, &models.Flaw{}, &models.User{})
	return DB, nil
}

// Connected check if a DB was opened
func Connected() bool {
	return DB != nil
}

// Close close the global connection
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}
