package authinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/iam/auth"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

// LogxAuditService implements auth.AuditService using structured logx logging.
type LogxAuditService struct{}

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogTokenIssued(_ context.Context, subject string, scopes []string, expiresAt time.Time) {
	logx.WithFields(logx.Fields{
		"audit_event": "token_issued",
		"subject":     subject,
		"scopes":      scopes,
		"expires_at":  expiresAt,
	}).Info("Audit: token issued")
}

func (s *LogxAuditService) LogAuthFailure(ctx context.Context, reason string, ip string, userAgent string) {
	logx.WithFields(logx.Fields{
		"audit_event": "auth_failure",
		"reason":      reason,
		"ip":          ip,
		"user_agent":  userAgent,
		"request_id":  kernel.RequestIDFrom(ctx),
	}).Warn("Audit: authentication failed")
}

var _ auth.AuditService = (*LogxAuditService)(nil)
