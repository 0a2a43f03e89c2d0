package sqlstore

// AccountManager 交易账户
type AccountManager struct {
	ID          uint   `gorm:"primaryKey"`
	AccountID   string `gorm:"column:account_id;size:64;index"`
	AccessKey   string `gorm:"column:access_key;size:128"`
	SecretKey   string `gorm:"column:secret_key;size:128"`
	PassPhrase  string `gorm:"column:pass_phrase;size:128"`
	AccountType string `gorm:"column:account_type;size:32"`
	Exchange    string `gorm:"column:exchange;size:16;index"`
	Status      int    `gorm:"column:status"`
	IsDelete    int    `gorm:"column:is_delete"`
}

func (AccountManager) TableName() string {
	return "account_manager"
}

type SysDictType struct {
	ID        uint   `gorm:"primaryKey"`
	FieldCode string `gorm:"column:field_code;size:64"`
}

func (SysDictType) TableName() string {
	return "sys_dict_type"
}

type SysDictData struct {
	ID       uint   `gorm:"primaryKey"`
	TypeID   uint   `gorm:"column:type_id;index"`
	ShowText string `gorm:"column:show_text;size:64"`
}

func (SysDictData) TableName() string {
	return "sys_dict_data"
}
