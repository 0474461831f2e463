package database

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/QRLogin-sec/QRLChecker/database/models"
	"github.com/QRLogin-sec/QRLChecker/libs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "qrlchecker-db")
	require.NoError(t, err)
	if _, err := InitDB(path.Join(dir, "sqlite.db")); err != nil {
		os.RemoveAll(dir)
		t.Skipf("sqlite not available: %v", err)
	}
	return func() {
		Close()
		os.RemoveAll(dir)
	}
}

func TestImportVerdict(t *testing.T) {
	defer openTestDB(t)()

	verdict := libs.Verdict{ScanID: "scan-1", Target: "https://t.example.com/login", TokenField: "sid", Token: "482913"}
	for i := range verdict.Results {
		verdict.Results[i] = libs.FlawResult{Flaw: libs.Flaw(i), Status: libs.StatusAbsent}
	}
	verdict.Results[libs.F3PredictableQRID].Status = libs.StatusPresent
	verdict.Results[libs.F6SensitiveDataLeakage] = libs.FlawResult{
		Flaw:   libs.F6SensitiveDataLeakage,
		Status: libs.StatusPresent,
		Leaked: []string{"id_card"},
	}

	assert.Equal(t, "scan-1", ImportVerdict(verdict))
	// importing again replaces the previous verdict
	ImportVerdict(verdict)

	verdicts := GetVerdicts()
	require.Len(t, verdicts, 1)
	assert.Equal(t, "F3,F6", verdicts[0].Detected)

	stored, err := GetVerdict("scan-1")
	require.NoError(t, err)
	assert.Equal(t, verdict, stored)

	flaws := GetFlaws("scan-1")
	require.Len(t, flaws, libs.FlawCount)
	assert.Equal(t, "F6", flaws[5].Code)
	assert.Equal(t, "id_card", flaws[5].Leaked)

	_, err = GetVerdict("missing")
	assert.Error(t, err)

	CleanVerdicts()
	assert.Empty(t, GetVerdicts())
}

func TestValidUser(t *testing.T) {
	defer openTestDB(t)()

	CreateUser("qrlchecker", "pass1")
	assert.True(t, ValidUser("qrlchecker", "pass1"))
	assert.False(t, ValidUser("qrlchecker", "wrong"))

	// new password replaces the old one
	CreateUser("qrlchecker", "pass2")
	assert.False(t, ValidUser("qrlchecker", "pass1"))
	assert.True(t, ValidUser("qrlchecker", "pass2"))
}

func TestNotConnected(t *testing.T) {
	Close()
	assert.False(t, Connected())
	assert.Equal(t, "", ImportVerdict(libs.Verdict{}))
	assert.Empty(t, GetVerdicts())
	assert.False(t, ValidUser("a", "b"))
	_, err := GetVerdict("x")
	assert.Error(t, err)
}

func TestImportVerdictStoreError(t *testing.T) {
	defer openTestDB(t)()

	DB.DropTable(&models.Verdict{})
	assert.Equal(t, "", ImportVerdict(libs.Verdict{ScanID: "scan-2"}))
	assert.Empty(t, GetFlaws("scan-2"), "flaws are not stored without their verdict")
}
