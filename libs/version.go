package libs

const (
	// VERSION current QRLChecker version
	VERSION = "beta v0.3.1"
	// AUTHOR author of this
	AUTHOR = "@QRLogin-sec"
	// DEFAULTFOLDER default root folder
	DEFAULTFOLDER = "~/.qrlchecker/"
)
