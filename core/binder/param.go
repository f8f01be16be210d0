package binder

// Role is where a parameter value comes from
type Role uint8

const (
	// RoleQuery is the zero role: parameters without an explicit role read the query
	RoleQuery Role = iota
	RoleHeader
	RoleBody
	RoleDependency
)

func (r Role) String() string {
	switch r {
	case RoleQuery:
		return "query"
	case RoleHeader:
		return "header"
	case RoleBody:
		return "body"
	case RoleDependency:
		return "dependency"
	}
	return "unknown"
}

// Parameter describes how one positional handler argument is bound
type Parameter struct {
	role       Role
	name       string
	kind       Kind
	hasDefault bool
	def        string
	dep        *Callback
}

// Param declares an argument without an explicit role; it reads the query
func Param(name string, kind Kind) Parameter {
	return Parameter{name: name, kind: kind}
}

// Query declares an argument read from the query string by exact name
func Query(name string, kind Kind) Parameter {
	return Parameter{role: RoleQuery, name: name, kind: kind}
}

// Header declares an argument read from a header, case-insensitively
func Header(name string, kind Kind) Parameter {
	return Parameter{role: RoleHeader, name: name, kind: kind}
}

// Body declares the argument receiving the request payload
func Body(kind Kind) Parameter {
	return Parameter{role: RoleBody, name: "body", kind: kind}
}

// Depends declares an argument whose value is the return value of dep,
// evaluated against the same request before the handler runs
func Depends(dep *Callback) Parameter {
	return Parameter{role: RoleDependency, dep: dep}
}

// Default attaches a raw default used when the key is absent.
// It is coerced like an incoming value, so "null" yields nil.
func (p Parameter) Default(raw string) Parameter {
	p.hasDefault = true
	p.def = raw
	return p
}

func (p Parameter) Role() Role {
	return p.role
}

func (p Parameter) Name() string {
	return p.name
}

func (p Parameter) Kind() Kind {
	return p.kind
}
