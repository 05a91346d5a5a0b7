package settings

// set by -ldflags "-X github.com/liut/medilink/pkg/settings.version=..."
var version = "dev"
