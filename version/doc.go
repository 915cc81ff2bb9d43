// Package version carries build information set through -ldflags and the
// Go build info. It is reported by /info, the version command and the
// User-Agent of outgoing requests.
//
//	go build -ldflags "-X github.com/kbukum/hvacform/version.Version=1.0.0" ./cmd/hvacform
package version
