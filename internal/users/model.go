package users

// User mirrors the JSONPlaceholder user resource.
type User struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Address  Address `json:"address"`
	Phone    string  `json:"phone"`
	Website  string  `json:"website"`
	Company  Company `json:"company"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	Suite   string `json:"suite,omitempty"`
	City    string `json:"city,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`
	Geo     Geo    `json:"geo"`
}

type Geo struct {
	Lat string `json:"lat,omitempty"`
	Lng string `json:"lng,omitempty"`
}

type Company struct {
	Name        string `json:"name,omitempty"`
	CatchPhrase string `json:"catchPhrase,omitempty"`
	BS          string `json:"bs,omitempty"`
}

// CreateUserPayload is the body of a create request.
type CreateUserPayload struct {
	Name     string   `json:"name" validate:"required"`
	Username string   `json:"username" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Address  *Address `json:"address,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Website  string   `json:"website,omitempty"`
	Company  *Company `json:"company,omitempty"`
}

// UpdateUserPayload carries the fields to change on user ID. Empty fields are
// left untouched. ID travels in the path, not the body.
type UpdateUserPayload struct {
	ID       int      `json:"-" validate:"required,gt=0"`
	Name     string   `json:"name,omitempty"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty" validate:"omitempty,email"`
	Address  *Address `json:"address,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Website  string   `json:"website,omitempty"`
	Company  *Company `json:"company,omitempty"`
}

// Apply copies the non-empty fields of p onto u.
func (p UpdateUserPayload) Apply(u *User) {
	if p.Name != "" {
		u.Name = p.Name
	}
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Phone != "" {
		u.Phone = p.Phone
	}
	if p.Website != "" {
		u.Website = p.Website
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
}

// User builds a user from the payload with the given id.
func (p CreateUserPayload) User(id int) User {
	u := User{
		ID:       id,
		Name:     p.Name,
		Username: p.Username,
		Email:    p.Email,
		Phone:    p.Phone,
		Website:  p.Website,
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	return u
}

// ListParams pages and filters a users list. Zero values take the defaults
// page 1 and 10 per page.
type ListParams struct {
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
	Query   string `json:"query,omitempty"`
}

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// Normalize fills in defaults.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// Params returns the query parameters understood by the users API.
func (p ListParams) Params() map[string]any {
	p = p.Normalize()
	params := map[string]any{
		"_page":  p.Page,
		"_limit": p.PerPage,
	}
	if p.Query != "" {
		params["q"] = p.Query
	}
	return params
}
