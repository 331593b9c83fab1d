package core

// TransactionPatch carries the fields of a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Category    *string    `json:"category,omitempty"`
	Type        *TxType    `json:"type,omitempty"`
	Amount      *Amount    `json:"amount,omitempty"`
	Date        *DateInput `json:"date,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// Apply returns a copy of t with the set fields replaced. t itself is not modified.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	out := t
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	return out
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Category == nil && p.Type == nil && p.Amount == nil && p.Date == nil && p.Description == nil
}

type GoalPatch struct {
	Name   *string   `json:"name,omitempty"`
	Type   *GoalType `json:"type,omitempty"`
	Amount *Amount   `json:"amount,omitempty"`
	Target *Amount   `json:"target,omitempty"`
}

// Apply returns a copy of g with the set fields replaced.
func (p GoalPatch) Apply(g Goal) Goal {
	out := g
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.Target != nil {
		out.Target = *p.Target
	}
	return out
}

func (p GoalPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Amount == nil && p.Target == nil
}

// ProfilePatch merges identity fields into an account. Empty strings are ignored.
type ProfilePatch struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photoURL,omitempty"`
}

func (p ProfilePatch) Apply(a Account) Account {
	out := a
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Email != "" {
		out.Email = p.Email
	}
	if p.PhotoURL != "" {
		out.PhotoURL = p.PhotoURL
	}
	return out
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Name == "" && p.Email == "" && p.PhotoURL == ""
}
