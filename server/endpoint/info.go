package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/hvacform/version"
)

// About is the body of GET /info.
type About struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuiltAt   string `json:"build_time"`
	GoVersion string `json:"go_version"`
	UserAgent string `json:"user_agent"`
	Uptime    string `json:"uptime"`
}

// Info reports the running build. Uptime counts from handler creation.
func Info(serviceName string) gin.HandlerFunc {
	started := time.Now()
	v := version.GetVersionInfo()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, About{
			Service:   serviceName,
			Version:   v.Version,
			Commit:    v.GitCommit,
			BuiltAt:   v.BuildTime,
			GoVersion: v.GoVersion,
			UserAgent: version.UserAgent(),
			Uptime:    time.Since(started).Round(time.Second).String(),
		})
	}
}
