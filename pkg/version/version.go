package version

// Version is the shelfkeeper release, set at build time:
// go build -ldflags "-X github.com/shelfkeeper/shelfkeeper/pkg/version.Version=1.0.0".
var Version = "dev"
