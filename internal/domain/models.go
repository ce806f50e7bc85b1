package domain

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&User{},
		&Session{},
		&Agenda{},
		&EntryToken{},
		&Participant{},
		&Vote{},
		&AuditEvent{},
		&SystemSetting{},
	}
}
