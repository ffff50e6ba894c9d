package domain

import "fmt"

// EntityKind identifies a category of registry-synced entity.
type EntityKind string

const (
	KindDeclaration        EntityKind = "declaration"
	KindDeclarationRequest EntityKind = "declaration_request"
	KindEmployee           EntityKind = "employee"
	KindEmployeeRequest    EntityKind = "employee_request"
	KindConfidantPerson    EntityKind = "confidant_person"
	KindContractRequest    EntityKind = "contract_request"
)

// Kinds lists every syncable entity category.
var Kinds = []EntityKind{
	KindDeclaration,
	KindDeclarationRequest,
	KindEmployee,
	KindEmployeeRequest,
	KindConfidantPerson,
	KindContractRequest,
}

// batchNames maps each kind to its fixed list-sync and detail-sync batch names.
var batchNames = map[EntityKind][2]string{
	KindDeclaration:        {"DeclarationsSync", "DeclarationDetailsSync"},
	KindDeclarationRequest: {"DeclarationRequestsSync", "DeclarationRequestDetailsSync"},
	KindEmployee:           {"EmployeesSync", "EmployeeDetailsSync"},
	KindEmployeeRequest:    {"EmployeeRequestsSync", "EmployeeRequestDetailsSync"},
	KindConfidantPerson:    {"ConfidantPersonsSync", "ConfidantPersonDetailsSync"},
	KindContractRequest:    {"ContractRequestsSync", "ContractRequestDetailsSync"},
}

// ParseEntityKind converts a request path segment into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return k, nil
}

// Valid reports whether k is a known entity category.
func (k EntityKind) Valid() bool {
	_, ok := batchNames[k]
	return ok
}

// ListBatchName returns the batch name used for paginated list syncs of this kind.
func (k EntityKind) ListBatchName() string {
	return batchNames[k][0]
}

// DetailBatchName returns the batch name used for detail-fetch chains of this kind.
func (k EntityKind) DetailBatchName() string {
	return batchNames[k][1]
}

// RoleScoped reports whether registry listings for this kind must additionally
// be filtered by the acting user's own registry employee id.
func (k EntityKind) RoleScoped() bool {
	return k == KindDeclaration || k == KindDeclarationRequest
}

// IsKnownBatchName reports whether name belongs to the fixed set of sync batch
// names. Resume/recovery only ever touches batches it recognizes.
func IsKnownBatchName(name string) bool {
	for _, names := range batchNames {
		if name == names[0] || name == names[1] {
			return true
		}
	}
	return false
}
