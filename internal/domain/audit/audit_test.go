package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildBaseQuery(t *testing.T) {
	s := &Service{}
	query, args := s.buildBaseQuery("SELECT COUNT(1)", Filter{Action: ActionPayslipApproved, EntityID: "12"})
	assert.Equal(t, "SELECT COUNT(1) FROM audit_events WHERE 1=1 AND action = $1 AND entity_id = $2", query)
	assert.Equal(t, []any{ActionPayslipApproved, "12"}, args)

	query, args = s.buildBaseQuery("SELECT 1", Filter{})
	assert.Equal(t, "SELECT 1 FROM audit_events WHERE 1=1", query)
	assert.Empty(t, args)
}
