// Package messages is the single source of user-facing outcome strings.
// Keeping them keyed in one catalog means localizing the one entry that is
// currently out of step with the rest (users.bulk_deleted is Indonesian)
// touches exactly one place.
package messages

// Key identifies a catalog entry.
type Key string

const (
	UserCreated      Key = "users.created"
	UserUpdated      Key = "users.updated"
	UserDeleted      Key = "users.deleted"
	UsersBulkDeleted Key = "users.bulk_deleted"
	EmailTaken       Key = "users.email_taken"
	UserMissing      Key = "users.id_missing"
	IDsRequired      Key = "users.ids_required"
)

var catalog = map[Key]string{
	UserCreated:      "User created successfully.",
	UserUpdated:      "User updated successfully.",
	UserDeleted:      "User deleted successfully.",
	UsersBulkDeleted: "Pengguna berhasil dihapus.",
	EmailTaken:       "The email has already been taken.",
	UserMissing:      "The selected id is invalid.",
	IDsRequired:      "The ids field is required.",
}

// Get resolves a key to its display string. Unknown keys fall back to the
// key itself so a miss is visible rather than silent.
func Get(key Key) string {
	if msg, ok := catalog[key]; ok {
		return msg
	}
	return string(key)
}
