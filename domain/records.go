package domain

// Role is the authorization level the backend assigns to a user.
type Role string

const (
	RoleNone  Role = ""
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Roles lists the assignable roles.
var Roles = []Role{RoleAdmin, RoleUser}

// ParseRole maps the backend's role string to a Role. Unknown values map
// to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	}
	return RoleNone
}

// Ref points at another record by id.
type Ref struct {
	ID int64 `json:"id"`
}

// User is an employee account.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserInput is the body sent when creating or updating a user. Password is
// sent only when set.
type UserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Password  string `json:"passwordHash,omitempty"`
}

// Client is the person who commissioned an order.
type Client struct {
	ID        int64  `json:"id,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Order is a funeral order for one deceased person.
type Order struct {
	ID                     int64      `json:"id"`
	Status                 string     `json:"status"`
	CadaverFirstName       string     `json:"cadaverFirstName"`
	CadaverLastName        string     `json:"cadaverLastName"`
	DeathCertificateNumber string     `json:"deathCertificateNumber"`
	BirthDate              *Timestamp `json:"birthDate"`
	DeathDate              *Timestamp `json:"deathDate"`
	OrderDate              *Timestamp `json:"orderDate"`
	Client                 *Client    `json:"client"`
	User                   *Ref       `json:"user"`
}

// OrderInput is the body sent when creating or updating an order.
type OrderInput struct {
	Status                 string     `json:"status"`
	CadaverFirstName       string     `json:"cadaverFirstName"`
	CadaverLastName        string     `json:"cadaverLastName"`
	DeathCertificateNumber string     `json:"deathCertificateNumber"`
	BirthDate              *Timestamp `json:"birthDate"`
	DeathDate              *Timestamp `json:"deathDate"`
	OrderDate              *Timestamp `json:"orderDate"`
	Client                 *Ref       `json:"client"`
	User                   *Ref       `json:"user"`
}
