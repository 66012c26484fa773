package models

// NotInformed 缺失字段的显示占位符
const NotInformed = "Não informado"

// UnitRecord 已登记的学校（对应 Units 表的一行）
type UnitRecord struct {
	UnitID       string `json:"unit_id"`
	ContactName  string `json:"contact_name"`
	Role         string `json:"role"`
	UnitName     string `json:"unit_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Address      string `json:"address"`
	LocationLink string `json:"location_link"`
}

// Units 表列名（第 1 行为表头）
const (
	ColumnUserID   = "User ID"
	ColumnName     = "Nome"
	ColumnRole     = "Função"
	ColumnUnit     = "Escola"
	ColumnPhone    = "Telefone"
	ColumnEmail    = "Email"
	ColumnAddress  = "Endereço"
	ColumnLocation = "Localização"
)

// UnitColumns Units 表的列顺序
var UnitColumns = []string{
	ColumnUserID,
	ColumnName,
	ColumnRole,
	ColumnUnit,
	ColumnPhone,
	ColumnEmail,
	ColumnAddress,
	ColumnLocation,
}

// AdminColumns Administradores 表的列顺序
var AdminColumns = []string{ColumnUserID}

// 表名
const (
	SheetUnits  = "Escolas"
	SheetAdmins = "Administradores"
)

// Row 表格中的一行（列名 -> 值）
type Row map[string]string

// ToRow 转换为存储行
func (u UnitRecord) ToRow() Row {
	return Row{
		ColumnUserID:   u.UnitID,
		ColumnName:     u.ContactName,
		ColumnRole:     u.Role,
		ColumnUnit:     u.UnitName,
		ColumnPhone:    u.Phone,
		ColumnEmail:    u.Email,
		ColumnAddress:  u.Address,
		ColumnLocation: u.LocationLink,
	}
}

// UnitFromRow 从存储行构建 UnitRecord
func UnitFromRow(r Row) UnitRecord {
	return UnitRecord{
		UnitID:       r[ColumnUserID],
		ContactName:  r[ColumnName],
		Role:         r[ColumnRole],
		UnitName:     r[ColumnUnit],
		Phone:        r[ColumnPhone],
		Email:        r[ColumnEmail],
		Address:      r[ColumnAddress],
		LocationLink: r[ColumnLocation],
	}
}

// Field 按列名读取字段值
func (u UnitRecord) Field(column string) (string, bool) {
	v, ok := u.ToRow()[column]
	return v, ok
}

// WithField 返回修改了指定列的副本；列不存在时 ok 为 false
func (u UnitRecord) WithField(column, value string) (UnitRecord, bool) {
	row := u.ToRow()
	if _, ok := row[column]; !ok {
		return u, false
	}
	row[column] = value
	return UnitFromRow(row), true
}

// OrPlaceholder 空值显示为 NotInformed
func OrPlaceholder(v string) string {
	if v == "" {
		return NotInformed
	}
	return v
}
