package api

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/backlogd/backlogd/internal/logger"
)

// LogsProvider provides access to log data.
type LogsProvider interface {
	GetRecentLogs() []logger.LogEntry
	GetLogFilePath() string
}

// getRecentLogs returns recent log entries from the ring buffer.
func (s *Server) getRecentLogs(c echo.Context) error {
	var logs []logger.LogEntry
	if s.logsProvider != nil {
		logs = s.logsProvider.GetRecentLogs()
	}
	if logs == nil {
		logs = []logger.LogEntry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// downloadLogFile serves the current log file for download.
func (s *Server) downloadLogFile(c echo.Context) error {
	if s.logsProvider == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	logPath := s.logsProvider.GetLogFilePath()
	if logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(logPath, "backlogd.log")
}
