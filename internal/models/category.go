package models

// EmergencyCategory 紧急事件类别（由关键词匹配得出，不持久化）
type EmergencyCategory string

const (
	CategoryAggressor EmergencyCategory = "AGGRESSOR"
	CategoryHomicide  EmergencyCategory = "HOMICIDE"
	CategoryHostage   EmergencyCategory = "HOSTAGE"
	CategoryExplosive EmergencyCategory = "EXPLOSIVE"
	CategoryTest      EmergencyCategory = "TEST"
)

// Label 告警中显示的类别名称
func (c EmergencyCategory) Label() string {
	switch c {
	case CategoryAggressor:
		return "AGRESSOR ATIVO"
	case CategoryHomicide:
		return "HOMICÍDIO"
	case CategoryHostage:
		return "TOMADA DE REFÉM"
	case CategoryExplosive:
		return "AMEAÇA DE EXPLOSIVOS"
	case CategoryTest:
		return "TESTE DE ATIVAÇÃO"
	default:
		return string(c)
	}
}
