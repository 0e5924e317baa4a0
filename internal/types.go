package internal

// Sheet is one tabular auction export, header row still in place.
type Sheet struct {
	Source string
	Rows   [][]string
}

type ItemRecord struct {
	ID        int
	Number    int
	CreatedAt string
	UpdatedAt string
}

type LineItemRecord struct {
	ID             int
	ItemID         int
	Number         int
	Position       int
	Title          string
	Description    string
	Value          int
	Categories     []string
	Notes          string
	Expiration     string
	ContentHash    string
	RawRow         string
	RawDescription string
	CreatedAt      string
	UpdatedAt      string
}

// LineItemAttrs is the working set of fields for one row between parsing and
// persistence. Value is already validated and never negative.
type LineItemAttrs struct {
	Title          string
	Description    string
	Value          int
	Categories     []string
	Notes          string
	Expiration     string
	ContentHash    string
	RawRow         string
	RawDescription string
}

// Extraction is the wire contract of the text extraction service.
type Extraction struct {
	Expiration  string `json:"expiration_notice"`
	Notes       string `json:"notes"`
	Description string `json:"description"`
}

type RowIssue struct {
	Row    int
	Number string
	Reason string
}

type RunStats struct {
	NewItems     int
	NewLineItems int
	Updated      int
	Skipped      int
	Deleted      int
	DeletedItems int
	Rejected     []RowIssue
}

func (s RunStats) Changed() int {
	return s.NewItems + s.NewLineItems + s.Updated + s.Deleted + s.DeletedItems
}

func (s *RunStats) Add(other RunStats) {
	s.NewItems += other.NewItems
	s.NewLineItems += other.NewLineItems
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Deleted += other.Deleted
	s.DeletedItems += other.DeletedItems
	s.Rejected = append(s.Rejected, other.Rejected...)
}

type Delivery struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	FileRef    string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
