package cabal

import (
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// boltIndexCache persists a source index to a BoltDB file, so callers
// that assemble their catalogue from slow backends can snapshot and
// restore it between invocations. The cache is an external collaborator
// of the solver: nothing inside the walk touches it.
//
// Layout:
//
//	Bucket: "meta"
//	  Key "schema" -> indexCacheSchema
//	Bucket: "source"
//	  Sub-bucket per package name
//	    Keys: "<version>" -> JSON-encoded sourceRecord
//	Bucket: "installed"
//	  Keys: "<unit id>" -> JSON-encoded installedRecord
type boltIndexCache struct {
	db *bolt.DB
}

const indexCacheSchema = "1"

var (
	bucketMeta      = []byte("meta")
	bucketSource    = []byte("source")
	bucketInstalled = []byte("installed")
	keySchema       = []byte("schema")
)

// sourceRecord is the stored form of a SourcePackage. The dependency
// tree round-trips through the exported Dep structure.
type sourceRecord struct {
	Deps        []Dep            `json:"deps,omitempty"`
	SetupDeps   []Dep            `json:"setupDeps,omitempty"`
	Flags       []FlagDecl       `json:"flags,omitempty"`
	Stanzas     map[Stanza][]Dep `json:"stanzas,omitempty"`
	MinCompiler Version          `json:"minCompiler,omitempty"`
}

type installedRecord struct {
	Name    PackageName `json:"name"`
	Version Version     `json:"version"`
	Depends []UnitId    `json:"depends,omitempty"`
	Exposed bool        `json:"exposed"`
}

// openBoltIndexCache opens or creates the cache file at path. A cache
// written under a different schema version is discarded.
func openBoltIndexCache(path string) (*boltIndexCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index cache %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if got := meta.Get(keySchema); got != nil && string(got) != indexCacheSchema {
			for _, name := range [][]byte{bucketSource, bucketInstalled} {
				if tx.Bucket(name) != nil {
					if err := tx.DeleteBucket(name); err != nil {
						return err
					}
				}
			}
		}
		return meta.Put(keySchema, []byte(indexCacheSchema))
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize index cache")
	}

	return &boltIndexCache{db: db}, nil
}

// close releases the database. Must not be called concurrently with any
// other method.
func (c *boltIndexCache) close() error {
	return errors.Wrapf(c.db.Close(), "error closing index cache %q", c.db.Path())
}

// putSource stores one source package, replacing any record for the
// same (name, version).
func (c *boltIndexCache) putSource(sp SourcePackage) error {
	rec := sourceRecord{
		Deps:        sp.Deps,
		SetupDeps:   sp.SetupDeps,
		Flags:       sp.Flags,
		Stanzas:     sp.Stanzas,
		MinCompiler: sp.MinCompiler,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", sp.pid())
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		src, err := tx.CreateBucketIfNotExists(bucketSource)
		if err != nil {
			return err
		}
		pb, err := src.CreateBucketIfNotExists([]byte(sp.Name))
		if err != nil {
			return err
		}
		return pb.Put([]byte(sp.Version.String()), data)
	})
}

// putInstalled stores one installed package, replacing any record with
// the same unit id.
func (c *boltIndexCache) putInstalled(ip InstalledPackage) error {
	data, err := json.Marshal(installedRecord{
		Name:    ip.Name,
		Version: ip.Version,
		Depends: ip.Depends,
		Exposed: ip.Exposed,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode installed unit %q", ip.UnitId)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketInstalled)
		if err != nil {
			return err
		}
		return b.Put([]byte(ip.UnitId), data)
	})
}

// snapshot writes a whole index in one transaction.
func (c *boltIndexCache) snapshot(installed []InstalledPackage, source []SourcePackage) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSource, bucketInstalled} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}

		src, err := tx.CreateBucket(bucketSource)
		if err != nil {
			return err
		}
		for _, sp := range source {
			rec := sourceRecord{
				Deps:        sp.Deps,
				SetupDeps:   sp.SetupDeps,
				Flags:       sp.Flags,
				Stanzas:     sp.Stanzas,
				MinCompiler: sp.MinCompiler,
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrapf(err, "failed to encode %s", sp.pid())
			}
			pb, err := src.CreateBucketIfNotExists([]byte(sp.Name))
			if err != nil {
				return err
			}
			if err := pb.Put([]byte(sp.Version.String()), data); err != nil {
				return err
			}
		}

		inst, err := tx.CreateBucket(bucketInstalled)
		if err != nil {
			return err
		}
		for _, ip := range installed {
			data, err := json.Marshal(installedRecord{
				Name:    ip.Name,
				Version: ip.Version,
				Depends: ip.Depends,
				Exposed: ip.Exposed,
			})
			if err != nil {
				return errors.Wrapf(err, "failed to encode installed unit %q", ip.UnitId)
			}
			if err := inst.Put([]byte(ip.UnitId), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// restore reads the cached catalogue back into an Index.
func (c *boltIndexCache) restore() (*Index, error) {
	var installed []InstalledPackage
	var source []SourcePackage

	err := c.db.View(func(tx *bolt.Tx) error {
		if src := tx.Bucket(bucketSource); src != nil {
			err := src.ForEach(func(name, v []byte) error {
				if v != nil {
					return errors.Errorf("malformed cache: bare key %q in source bucket", name)
				}
				pb := src.Bucket(name)
				return pb.ForEach(func(verKey, data []byte) error {
					ver, err := ParseVersion(string(verKey))
					if err != nil {
						return errors.Wrapf(err, "malformed cached version key %q", verKey)
					}
					var rec sourceRecord
					if err := json.Unmarshal(data, &rec); err != nil {
						return errors.Wrapf(err, "failed to decode %s-%s", name, verKey)
					}
					source = append(source, SourcePackage{
						Name:        PackageName(name),
						Version:     ver,
						Deps:        rec.Deps,
						SetupDeps:   rec.SetupDeps,
						Flags:       rec.Flags,
						Stanzas:     rec.Stanzas,
						MinCompiler: rec.MinCompiler,
					})
					return nil
				})
			})
			if err != nil {
				return err
			}
		}

		if inst := tx.Bucket(bucketInstalled); inst != nil {
			err := inst.ForEach(func(uid, data []byte) error {
				var rec installedRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return errors.Wrapf(err, "failed to decode installed unit %q", uid)
				}
				installed = append(installed, InstalledPackage{
					UnitId:  UnitId(uid),
					Name:    rec.Name,
					Version: rec.Version,
					Depends: rec.Depends,
					Exposed: rec.Exposed,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewIndex(installed, source)
}
