package database

import (
	"github.com/QRLogin-sec/QRLChecker/database/models"
	"github.com/QRLogin-sec/QRLChecker/utils"
)

// CreateUser create new user, the password is stored hashed
func CreateUser(username string, password string) {
	if DB == nil {
		return
	}
	userObj := models.User{
		Username: username,
		Password: utils.GenHash(password),
	}
	DB.Where(models.User{Username: username}).Assign(models.User{Password: userObj.Password}).FirstOrCreate(&userObj)
}

// ValidUser check credentials of the api server
func ValidUser(username string, password string) bool {
	if DB == nil {
		return false
	}
	var user models.User
	DB.Where("username = ? AND password = ?", username, utils.GenHash(password)).First(&user)
	return user.Username != ""
}
