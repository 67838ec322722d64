package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for domain operations
var (
	ErrIssueNotFound     = goerr.New("issue not found")
	ErrReportNotFound    = goerr.New("audit report not found")
	ErrServiceNotFound   = goerr.New("service not found in catalog")
	ErrInvalidTransition = goerr.New("invalid status transition")
)
