package database

import (
	"fmt"
	"strings"

	"github.com/QRLogin-sec/QRLChecker/database/models"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/QRLogin-sec/QRLChecker/utils"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// CleanVerdicts clean all stored verdicts
func CleanVerdicts() {
	if DB == nil {
		return
	}
	DB.Unscoped().Delete(&models.Flaw{})
	DB.Unscoped().Delete(&models.Verdict{})
}

// ImportVerdict store a verdict and its six probe results
func ImportVerdict(verdict libs.Verdict) string {
	if DB == nil {
		return ""
	}
	if verdict.ScanID == "" {
		verdict.ScanID = uuid.NewString()
	}
	raw, _ := jsoniter.MarshalToString(verdict)
	var detected []string
	for _, f := range verdict.Detected() {
		detected = append(detected, f.Code())
	}

	obj := models.Verdict{
		ScanID:     verdict.ScanID,
		Target:     verdict.Target,
		TokenField: verdict.TokenField,
		Token:      verdict.Token,
		Detected:   strings.Join(detected, ","),
		Raw:        raw,
	}
	// a rerun with the same scan id replaces the old verdict
	if err := DB.Unscoped().Where("scan_id = ?", verdict.ScanID).Delete(&models.Flaw{}).Error; err != nil {
		utils.ErrorF("Error deleting old flaws of %v: %v", verdict.ScanID, err)
	}
	if err := DB.Unscoped().Where("scan_id = ?", verdict.ScanID).Delete(&models.Verdict{}).Error; err != nil {
		utils.ErrorF("Error deleting old verdict %v: %v", verdict.ScanID, err)
	}
	if err := DB.Create(&obj).Error; err != nil {
		utils.ErrorF("Error storing verdict %v: %v", verdict.ScanID, err)
		return ""
	}
	for _, r := range verdict.Results {
		flaw := models.Flaw{
			ScanID: verdict.ScanID,
			Code:   r.Flaw.Code(),
			Name:   r.Flaw.Name(),
			Status: string(r.Status),
			Leaked: strings.Join(r.Leaked, ","),
			Reason: r.Reason,
		}
		if err := DB.Create(&flaw).Error; err != nil {
			utils.ErrorF("Error storing flaw %v of %v: %v", flaw.Code, verdict.ScanID, err)
		}
	}
	return obj.ScanID
}

// GetVerdicts list stored verdicts, newest first
func GetVerdicts() []models.Verdict {
	var verdicts []models.Verdict
	if DB == nil {
		return verdicts
	}
	DB.Order("id desc").Find(&verdicts)
	return verdicts
}

// GetVerdict load a verdict by scan id
func GetVerdict(scanID string) (libs.Verdict, error) {
	var verdict libs.Verdict
	if DB == nil {
		return verdict, fmt.Errorf("database not connected")
	}
	var obj models.Verdict
	if err := DB.Where("scan_id = ?", scanID).First(&obj).Error; err != nil {
		return verdict, fmt.Errorf("verdict %v: %w", scanID, err)
	}
	err := jsoniter.UnmarshalFromString(obj.Raw, &verdict)
	return verdict, err
}

// GetFlaws probe results of a verdict
func GetFlaws(scanID string) []models.Flaw {
	var flaws []models.Flaw
	if DB == nil {
		return flaws
	}
	DB.Where("scan_id = ?", scanID).Order("code").Find(&flaws)
	return flaws
}
