package config

// Build-time values injected via ldflags. The embedded Twitch credentials
// serve as defaults and can be overridden by environment variables or the
// config file.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/backlogd/backlogd/internal/config.Version=1.2.0' \
//	                   -X 'github.com/backlogd/backlogd/internal/config.EmbeddedClientID=xxx' \
//	                   -X 'github.com/backlogd/backlogd/internal/config.EmbeddedClientSecret=yyy'"
var (
	Version              = "dev"
	EmbeddedClientID     string
	EmbeddedClientSecret string
)
