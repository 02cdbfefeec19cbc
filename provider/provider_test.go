package provider

import (
	"testing"

	"github.com/jburman/ZeroG-sub001/constraint"
	"github.com/jburman/ZeroG-sub001/zerog_errors"
	"github.com/stretchr/testify/assert"
)

func TestObjectMetadata_Validate(t *testing.T) {
	md := ObjectMetadata{
		ObjectFullName: "app.Person",
		Indexes: []IndexDefinition{
			{Name: "Name", Type: constraint.TypeString},
			{Name: "Age", Type: constraint.TypeInt32},
		},
	}
	assert.NoError(t, md.Validate())

	bad := []ObjectMetadata{
		{},
		{ObjectFullName: "app.Person", Indexes: []IndexDefinition{{Name: ""}}},
		{ObjectFullName: "app.Person", Indexes: []IndexDefinition{{Name: IDIndex}}},
		{ObjectFullName: "app.Person", Indexes: []IndexDefinition{{Name: "A"}, {Name: "A"}}},
		{ObjectFullName: "app.Person", Indexes: []IndexDefinition{{Name: "id"}}},
		{ObjectFullName: "app.Person", Indexes: []IndexDefinition{{Name: "Name"}, {Name: "NAME"}}},
	}
	for _, b := range bad {
		assert.ErrorIs(t, b.Validate(), zerog_errors.ErrBadMetadata, b.ObjectFullName)
	}
}

func TestObjectMetadata_Lookup(t *testing.T) {
	md := ObjectMetadata{
		ObjectFullName: "app.Person",
		Indexes: []IndexDefinition{
			{Name: "Name", Type: constraint.TypeString},
			{Name: "Age", Type: constraint.TypeInt32},
		},
	}
	assert.True(t, md.HasIndex("Name"))
	assert.True(t, md.HasIndex(IDIndex))
	assert.False(t, md.HasIndex("Email"))
	assert.Equal(t, map[string]constraint.ValueType{
		"Name": constraint.TypeString,
		"Age":  constraint.TypeInt32,
	}, md.Types())
}
