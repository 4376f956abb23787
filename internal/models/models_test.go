package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrimaryRole(t *testing.T) {
	assert.Equal(t, RoleSystemAdmin, PrimaryRole([]Role{RoleBasicUser, RoleSystemAdmin}))
	assert.Equal(t, RoleProviderGroupAdmin, PrimaryRole([]Role{RoleBasicUser, RoleProviderGroupAdmin}))
	assert.Equal(t, Role(""), PrimaryRole([]Role{"auditor"}))
	assert.Equal(t, Role(""), PrimaryRole(nil))
}

func TestParseRolesDropsUnknown(t *testing.T) {
	roles := ParseRoles([]string{"basic-user", "superuser", "customer-admin"})
	assert.Equal(t, []Role{RoleBasicUser, RoleCustomerAdmin}, roles)
	assert.Equal(t, []string{"basic-user", "customer-admin"}, RoleNames(roles))
}

func TestValidNPI(t *testing.T) {
	assert.True(t, ValidNPI("1234567893"))
	assert.True(t, ValidNPI("1245319599"))
	assert.False(t, ValidNPI("1234567890"))
	assert.False(t, ValidNPI("123456789"))
	assert.False(t, ValidNPI("12345678a3"))
}

func TestSubmissionTransitions(t *testing.T) {
	assert.True(t, SubmissionDraft.CanTransitionTo(SubmissionSubmitted))
	assert.True(t, SubmissionSubmitted.CanTransitionTo(SubmissionProcessing))
	assert.True(t, SubmissionProcessing.CanTransitionTo(SubmissionRejected))
	assert.False(t, SubmissionDraft.CanTransitionTo(SubmissionCompleted))
	assert.False(t, SubmissionSubmitted.CanTransitionTo(SubmissionDraft))
	assert.False(t, SubmissionCompleted.CanTransitionTo(SubmissionError))

	assert.True(t, SubmissionDraft.Editable())
	assert.False(t, SubmissionSubmitted.Editable())
	assert.False(t, SubmissionStatus("ARCHIVED").Valid())
	assert.True(t, PurposePriorAuthorization.Valid())
	assert.False(t, Purpose("MARKETING").Valid())
}
