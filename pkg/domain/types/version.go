package types

// Version is the application version, overridden at build time via -ldflags
var Version = "dev"

// AppName is the binary name used in usage text and the User-Agent header
const AppName = "ms-ipv6"
