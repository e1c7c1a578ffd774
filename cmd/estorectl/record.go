package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estore"
	"github.com/cuemby/estore/pkg/query"
	"github.com/cuemby/estore/pkg/tuple"
	"github.com/cuemby/estore/pkg/txn"
	"github.com/spf13/cobra"
)

// genericRecord is the entity.Record get/put/delete use for ad-hoc
// inspection of a type no application code registered in this process:
// its fields are whatever JSON the operator gave on the command line
// (or read back from storage), addressed by name rather than a
// generated accessor. It round-trips through codec.Encode/Decode (plain
// JSON) like any application record, so a put from estorectl and a get
// from application code agree on wire format as long as field names
// match the application's own JSON tags.
type genericRecord struct {
	id     string
	typ    *entity.Type
	fields map[string]interface{}
}

func (r *genericRecord) ID() tuple.Element  { return tuple.Str(r.id) }
func (r *genericRecord) Type() *entity.Type { return r.typ }

func (r *genericRecord) FieldValue(name string) query.FieldValue {
	return toFieldValue(r.fields[name])
}

func (r *genericRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.fields)+1)
	for k, v := range r.fields {
		out[k] = v
	}
	out["id"] = r.id
	return json.Marshal(out)
}

func (r *genericRecord) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if idVal, ok := m["id"]; ok {
		if s, ok := idVal.(string); ok {
			r.id = s
		}
		delete(m, "id")
	}
	r.fields = m
	return nil
}

func toFieldValue(v interface{}) query.FieldValue {
	switch x := v.(type) {
	case nil:
		return query.Null()
	case bool:
		return query.Bool(x)
	case float64:
		return query.Double(x)
	case string:
		return query.String(x)
	case []interface{}:
		elems := make([]query.FieldValue, len(x))
		for i, e := range x {
			elems[i] = toFieldValue(e)
		}
		return query.Array(elems...)
	default:
		return query.Null()
	}
}

// adHocType builds a throwaway entity.Type scoped to its own directory
// path so get/put/delete can address any type name without requiring
// an application binary to have registered it up front. It carries no
// indexes: ad-hoc writes maintain no derived state, only the item
// itself.
func adHocType(name string) *entity.Type {
	t := &entity.Type{
		Name:          name,
		DirectoryPath: []string{"estorectl", name},
	}
	t.NewRecord = func() entity.Record { return &genericRecord{typ: t} }
	return t
}

func openAdHocStore(cmd *cobra.Command, typeName string) (*estore.Store, *entity.Type, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := estore.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	t := adHocType(typeName)
	s.RegisterType(t, nil)
	return s, t, nil
}

var getCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Read and print a record as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, id := args[0], args[1]
		s, t, err := openAdHocStore(cmd, typeName)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, found, err := s.Get(t, tuple.Str(id))
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("estorectl: no %s record with id %q", typeName, id)
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put <type> <id> <json>",
	Short: "Write a record from a JSON object",
	Long: `put stores <json> verbatim under <type>/<id>, adding/overwriting
the "id" field from <id>. Field names must match what application code
reading this record expects, since estorectl has no schema for an
ad-hoc type.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, id, body := args[0], args[1], args[2]
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return fmt.Errorf("estorectl: invalid JSON: %w", err)
		}
		delete(fields, "id")

		s, t, err := openAdHocStore(cmd, typeName)
		if err != nil {
			return err
		}
		defer s.Close()

		rec := &genericRecord{id: id, typ: t, fields: fields}
		cs := txn.NewChangeSet()
		cs.Insert(t, rec)
		if err := s.Save(context.Background(), txn.Default(), cs); err != nil {
			return err
		}
		fmt.Printf("%s/%s written\n", typeName, id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <type> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeName, id := args[0], args[1]
		s, t, err := openAdHocStore(cmd, typeName)
		if err != nil {
			return err
		}
		defer s.Close()

		cs := txn.NewChangeSet()
		cs.Delete(t, tuple.Str(id))
		if err := s.Save(context.Background(), txn.Default(), cs); err != nil {
			return err
		}
		fmt.Printf("%s/%s deleted\n", typeName, id)
		return nil
	},
}
