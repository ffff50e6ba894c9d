package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EntityKind
		wantErr bool
	}{
		{name: "declaration", input: "declaration", want: KindDeclaration},
		{name: "declaration request", input: "declaration_request", want: KindDeclarationRequest},
		{name: "employee", input: "employee", want: KindEmployee},
		{name: "employee request", input: "employee_request", want: KindEmployeeRequest},
		{name: "confidant person", input: "confidant_person", want: KindConfidantPerson},
		{name: "contract request", input: "contract_request", want: KindContractRequest},
		{name: "unknown", input: "divisions", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "Declaration", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntityKind(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownCategory)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestEntityKind_BatchNames(t *testing.T) {
	tests := []struct {
		kind       EntityKind
		listName   string
		detailName string
	}{
		{KindDeclaration, "DeclarationsSync", "DeclarationDetailsSync"},
		{KindDeclarationRequest, "DeclarationRequestsSync", "DeclarationRequestDetailsSync"},
		{KindEmployee, "EmployeesSync", "EmployeeDetailsSync"},
		{KindEmployeeRequest, "EmployeeRequestsSync", "EmployeeRequestDetailsSync"},
		{KindConfidantPerson, "ConfidantPersonsSync", "ConfidantPersonDetailsSync"},
		{KindContractRequest, "ContractRequestsSync", "ContractRequestDetailsSync"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.listName, tt.kind.ListBatchName())
			assert.Equal(t, tt.detailName, tt.kind.DetailBatchName())
			assert.True(t, IsKnownBatchName(tt.listName))
			assert.True(t, IsKnownBatchName(tt.detailName))
		})
	}

	assert.False(t, IsKnownBatchName("SomeOtherBatch"))
	assert.False(t, IsKnownBatchName(""))
}

func TestEntityKind_RoleScoped(t *testing.T) {
	assert.True(t, KindDeclaration.RoleScoped())
	assert.True(t, KindDeclarationRequest.RoleScoped())

	for _, kind := range []EntityKind{KindEmployee, KindEmployeeRequest, KindConfidantPerson, KindContractRequest} {
		assert.False(t, kind.RoleScoped(), "kind %s should not be role scoped", kind)
	}
}
