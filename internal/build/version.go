package build

// set with -ldflags at build time
var (
	Version = "0.1.0"
	Commit  string
)

func GetVersion() string {
	basicVersion := "v" + Version

	if Commit == "" {
		return basicVersion
	}

	return basicVersion + "-" + Commit
}
