package enum

type EntityType string

const (
	ACCOUNT EntityType = "ACCOUNT"
	EMAIL   EntityType = "EMAIL"
	FOLDER  EntityType = "FOLDER"
)

func (entityType EntityType) String() string {
	return string(entityType)
}

func GetEntityType(s string) EntityType {
	return EntityType(s)
}
