package pg

import "time"

type UserModel struct {
	ID             string  `gorm:"size:128;primaryKey"`
	Name           string  `gorm:"size:255;not null"`
	ProfilePicture *string `gorm:"type:text"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

type GroupModel struct {
	ID          string  `gorm:"size:128;primaryKey"`
	InviteCode  string  `gorm:"size:6;not null;uniqueIndex"`
	Name        string  `gorm:"size:255;not null"`
	Photo       *string `gorm:"type:text"`
	TotalAmount float64 `gorm:"type:numeric(10,2);not null"`
	CreatorID   string  `gorm:"size:128;not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GroupModel) TableName() string {
	return "groups"
}

type GroupMemberModel struct {
	GroupID string `gorm:"size:128;primaryKey"`
	UserID  string `gorm:"size:128;primaryKey"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GroupMemberModel) TableName() string {
	return "group_members"
}

// ContactModel is a directed friend edge.
type ContactModel struct {
	UserID   string `gorm:"size:128;primaryKey"`
	FriendID string `gorm:"size:128;primaryKey"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ContactModel) TableName() string {
	return "contacts"
}

type ExpenseModel struct {
	ID             string  `gorm:"size:128;primaryKey"`
	GroupID        string  `gorm:"size:128;not null;index"`
	Name           string  `gorm:"size:255;not null"`
	Amount         float64 `gorm:"type:numeric(10,2);not null"`
	CreatorID      string  `gorm:"size:128;not null"`
	IsBillAttached bool    `gorm:"not null"`
	BillPhoto      *string `gorm:"type:text"`
	BillStatus     string  `gorm:"size:16;not null;default:''"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ExpenseModel) TableName() string {
	return "expenses"
}

type ExpenseParticipantModel struct {
	ExpenseID string  `gorm:"size:128;primaryKey"`
	UserID    string  `gorm:"size:128;primaryKey"`
	Share     float64 `gorm:"type:numeric(10,2);not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ExpenseParticipantModel) TableName() string {
	return "expense_participants"
}

type BillItemModel struct {
	ID         string  `gorm:"size:128;primaryKey"`
	ExpenseID  string  `gorm:"size:128;not null;index"`
	Name       string  `gorm:"size:255;not null"`
	Price      float64 `gorm:"type:numeric(10,2);not null"`
	Quantity   int     `gorm:"not null;default:1"`
	TotalPrice float64 `gorm:"type:numeric(10,2);not null"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BillItemModel) TableName() string {
	return "bill_items"
}

type BillItemAssignmentModel struct {
	BillItemID string `gorm:"size:128;primaryKey"`
	UserID     string `gorm:"size:128;primaryKey"`
	// meta data
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (BillItemAssignmentModel) TableName() string {
	return "bill_item_assignments"
}
