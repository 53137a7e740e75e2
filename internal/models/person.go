package models

// Person types distinguish the people the tracker keeps records about.
const (
	PersonTypeStudent  = "student"
	PersonTypeEmployee = "employee"
)

// Person is a tracked record about a student or employee. Notes and history
// attach to it polymorphically.
type Person struct {
	BaseModel

	PersonType string `gorm:"type:varchar(20);default:'student';index" json:"person_type"`

	FirstName string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(150);not null;index" json:"last_name"`

	Email string `gorm:"type:varchar(255)" json:"email"`
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	Remarks string `gorm:"type:text" json:"remarks"`
}

func (p *Person) EntityKind() Kind { return KindPerson }
func (p *Person) EntityID() string { return p.ID }

// ValidPersonType reports whether the supplied value is a known person type.
func ValidPersonType(value string) bool {
	return value == PersonTypeStudent || value == PersonTypeEmployee
}
