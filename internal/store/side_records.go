package store

import (
	"database/sql"
)

// Email is the side record for KindEmail documents.
type Email struct {
	DocumentID  string
	FromAddress string
	ToAddresses string // JSON-encoded []string
	Subject     string
	ThreadID    string
	SentAt      int64
}

// Event is the side record for KindEvent documents.
type Event struct {
	DocumentID   string
	StartsAt     int64
	EndsAt       int64
	Location     string
	CalendarName string
	AllDay       bool
}

// Reminder is the side record for KindReminder documents.
type Reminder struct {
	DocumentID string
	DueAt      int64
	Completed  bool
	ListName   string
}

// Note is the side record for KindNote documents.
type Note struct {
	DocumentID string
	Folder     string
	ModifiedAt int64
}

// Contact is the side record for KindContact documents.
type Contact struct {
	DocumentID   string
	FullName     string
	Emails       string // JSON-encoded []string
	PhoneNumbers string // JSON-encoded []string
	Organization string
}

// Message is the side record for KindMessage documents.
type Message struct {
	DocumentID string
	ChatID     string
	Sender     string
	Service    string
	SentAt     int64
}

// File is the side record for KindFile documents.
type File struct {
	DocumentID string
	Path       string
	MimeType   string
	SizeBytes  int64
	ModifiedAt int64
}

// UpsertEmail replaces the email side record for a document atomically.
func (s *Store) UpsertEmail(e Email) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO emails (document_id, from_address, to_addresses, subject, thread_id, sent_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				from_address = excluded.from_address, to_addresses = excluded.to_addresses,
				subject = excluded.subject, thread_id = excluded.thread_id, sent_at = excluded.sent_at`,
			e.DocumentID, e.FromAddress, e.ToAddresses, e.Subject, e.ThreadID, e.SentAt,
		)
		return err
	})
}

// GetEmail loads the email side record for a document.
func (s *Store) GetEmail(documentID string) (Email, error) {
	var e Email
	e.DocumentID = documentID
	err := s.db.QueryRow(
		`SELECT from_address, to_addresses, subject, thread_id, sent_at FROM emails WHERE document_id = ?`,
		documentID,
	).Scan(&e.FromAddress, &e.ToAddresses, &e.Subject, &e.ThreadID, &e.SentAt)
	if err == sql.ErrNoRows {
		return Email{}, ErrNotFound
	}
	return e, err
}

// UpsertEvent replaces the event side record for a document atomically.
func (s *Store) UpsertEvent(e Event) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO events (document_id, starts_at, ends_at, location, calendar_name, all_day)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				starts_at = excluded.starts_at, ends_at = excluded.ends_at,
				location = excluded.location, calendar_name = excluded.calendar_name, all_day = excluded.all_day`,
			e.DocumentID, e.StartsAt, e.EndsAt, e.Location, e.CalendarName, boolToInt(e.AllDay),
		)
		return err
	})
}

// GetEvent loads the event side record for a document.
func (s *Store) GetEvent(documentID string) (Event, error) {
	var e Event
	e.DocumentID = documentID
	var allDay int
	err := s.db.QueryRow(
		`SELECT starts_at, ends_at, location, calendar_name, all_day FROM events WHERE document_id = ?`,
		documentID,
	).Scan(&e.StartsAt, &e.EndsAt, &e.Location, &e.CalendarName, &allDay)
	if err == sql.ErrNoRows {
		return Event{}, ErrNotFound
	}
	e.AllDay = allDay != 0
	return e, err
}

// UpsertReminder replaces the reminder side record for a document atomically.
func (s *Store) UpsertReminder(r Reminder) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO reminders (document_id, due_at, completed, list_name)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				due_at = excluded.due_at, completed = excluded.completed, list_name = excluded.list_name`,
			r.DocumentID, r.DueAt, boolToInt(r.Completed), r.ListName,
		)
		return err
	})
}

// GetReminder loads the reminder side record for a document.
func (s *Store) GetReminder(documentID string) (Reminder, error) {
	var r Reminder
	r.DocumentID = documentID
	var completed int
	err := s.db.QueryRow(
		`SELECT due_at, completed, list_name FROM reminders WHERE document_id = ?`, documentID,
	).Scan(&r.DueAt, &completed, &r.ListName)
	if err == sql.ErrNoRows {
		return Reminder{}, ErrNotFound
	}
	r.Completed = completed != 0
	return r, err
}

// DeleteReminder removes a reminder's document outright. Used as the inverse
// operation for create_reminder rollback.
func (s *Store) DeleteReminder(documentID string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM documents WHERE id = ? AND kind = ?`, documentID, string(KindReminder))
		return err
	})
}

// DeleteEvent removes an event's document outright, the inverse of
// create_event.
func (s *Store) DeleteEvent(documentID string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM documents WHERE id = ? AND kind = ?`, documentID, string(KindEvent))
		return err
	})
}

// EventsInRange lists non-deleted events whose start falls in [from, to),
// ordered earliest first. Backs the calendar_list tool.
func (s *Store) EventsInRange(from, to int64) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT e.document_id, e.starts_at, e.ends_at, e.location, e.calendar_name, e.all_day
		 FROM events e JOIN documents d ON d.id = e.document_id
		 WHERE e.starts_at >= ? AND e.starts_at < ? AND d.deleted = 0
		 ORDER BY e.starts_at ASC`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var allDay int
		if err := rows.Scan(&e.DocumentID, &e.StartsAt, &e.EndsAt, &e.Location, &e.CalendarName, &allDay); err != nil {
			return nil, err
		}
		e.AllDay = allDay != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertNote replaces the note side record for a document atomically.
func (s *Store) UpsertNote(n Note) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO notes (document_id, folder, modified_at) VALUES (?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET folder = excluded.folder, modified_at = excluded.modified_at`,
			n.DocumentID, n.Folder, n.ModifiedAt,
		)
		return err
	})
}

// UpsertContact replaces the contact side record for a document atomically.
func (s *Store) UpsertContact(c Contact) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO contacts (document_id, full_name, emails, phone_numbers, organization)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				full_name = excluded.full_name, emails = excluded.emails,
				phone_numbers = excluded.phone_numbers, organization = excluded.organization`,
			c.DocumentID, c.FullName, c.Emails, c.PhoneNumbers, c.Organization,
		)
		return err
	})
}

// GetContact loads the contact side record for a document.
func (s *Store) GetContact(documentID string) (Contact, error) {
	var c Contact
	c.DocumentID = documentID
	err := s.db.QueryRow(
		`SELECT full_name, emails, phone_numbers, organization FROM contacts WHERE document_id = ?`, documentID,
	).Scan(&c.FullName, &c.Emails, &c.PhoneNumbers, &c.Organization)
	if err == sql.ErrNoRows {
		return Contact{}, ErrNotFound
	}
	return c, err
}

// FindContactByEmail returns the document id of the contact whose Emails
// list contains address, used by ingest to link an email to its sender/
// recipient contacts. Matches the first contact found if more than one
// shares the address.
func (s *Store) FindContactByEmail(address string) (string, error) {
	var documentID string
	err := s.db.QueryRow(
		`SELECT document_id FROM contacts WHERE emails LIKE ? LIMIT 1`, "%"+address+"%",
	).Scan(&documentID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return documentID, err
}

// UpsertMessage replaces the message side record for a document atomically.
func (s *Store) UpsertMessage(m Message) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO messages (document_id, chat_id, sender, service, sent_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				chat_id = excluded.chat_id, sender = excluded.sender,
				service = excluded.service, sent_at = excluded.sent_at`,
			m.DocumentID, m.ChatID, m.Sender, m.Service, m.SentAt,
		)
		return err
	})
}

// UpsertFile replaces the file side record for a document atomically.
func (s *Store) UpsertFile(f File) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO files (document_id, path, mime_type, size_bytes, modified_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(document_id) DO UPDATE SET
				path = excluded.path, mime_type = excluded.mime_type,
				size_bytes = excluded.size_bytes, modified_at = excluded.modified_at`,
			f.DocumentID, f.Path, f.MimeType, f.SizeBytes, f.ModifiedAt,
		)
		return err
	})
}
