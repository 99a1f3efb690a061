package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"choreographer.io/FlowServer/geom"
	bolt "go.etcd.io/bbolt"
)

var (
	obstaclesBucket = []byte("obstacles")
	zoneBucket      = []byte("nogozone")
	telemetryBucket = []byte("telemetry")
	runsBucket      = []byte("runs")

	zoneKey = []byte("zone")
)

type boltDBPersister struct {
	db *bolt.DB
}

// We already have JSON for obstacles sent over websockets, but the
// layout order must be saved too
type serializedObstacle struct {
	Index    int
	Obstacle geom.Obstacle
}

func newBoltDBPersister(dbfilename string) Persister {

	persister := &boltDBPersister{}

	db, err := bolt.Open(dbfilename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil || db == nil {
		log.Fatal(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{obstaclesBucket, zoneBucket, telemetryBucket, runsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	persister.db = db

	return persister
}

func (p *boltDBPersister) readLayoutInto(sim *Simulation) error {
	log.Info("Loading layout from file")
	return p.db.View(func(tx *bolt.Tx) error {
		before := time.Now()
		counter := 0

		err := tx.Bucket(obstaclesBucket).ForEach(func(id, v []byte) error {
			obj := serializedObstacle{}
			if err := json.Unmarshal(v, &obj); err != nil {
				return err
			}
			sim._loadObstacle(obj.Obstacle, obj.Index)
			counter++
			return nil
		})
		if err != nil {
			return err
		}

		if v := tx.Bucket(zoneBucket).Get(zoneKey); v != nil {
			zone := geom.NoGoZone{}
			if err := json.Unmarshal(v, &zone); err != nil {
				return err
			}
			sim._loadZone(zone)
		}
		after := time.Now()

		log.Infof("BoltDB: loaded %d obstacles in %fs", counter, after.Sub(before).Seconds())
		return nil
	})
}

func (p *boltDBPersister) put(bucketName []byte, key string, obj interface{}) error {
	// we're using JSON marshalling: it will be easier to upgrade to a new version of JSON schemas
	bytes, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	return p.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(key), bytes)
	})
}

func (p *boltDBPersister) persistObstacle(o *Obstacle) error {
	return p.put(obstaclesBucket, o.ID, serializedObstacle{o.index, o.Obstacle})
}

func (p *boltDBPersister) persistZone(zone geom.NoGoZone) error {
	return p.put(zoneBucket, string(zoneKey), zone)
}

func (p *boltDBPersister) persistTelemetry(record *TelemetryRecord) error {
	return p.put(telemetryBucket, record.ID, record)
}

func (p *boltDBPersister) readTelemetry() ([]TelemetryRecord, error) {
	records := []TelemetryRecord{}
	err := p.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(telemetryBucket).ForEach(func(id, v []byte) error {
			record := TelemetryRecord{}
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

func (p *boltDBPersister) persistRun(run *RunSummary) error {
	return p.put(runsBucket, run.ID, run)
}

func (p *boltDBPersister) close() {
	p.db.Close()
}

func authorizedBearer(req *http.Request) bool {
	auth := req.Header.Get("Authorization")
	return WebhookBearerToken != "" && (auth == WebhookBearerToken || req.URL.Query().Get("bearer") == WebhookBearerToken)
}

// BackupHandleFunc outputs a bolt db backup as a route !
func (p *boltDBPersister) BackupHandleFunc(w http.ResponseWriter, req *http.Request) {
	if !authorizedBearer(req) {
		w.WriteHeader(http.StatusUnauthorized)
		log.Warn("Unauthorized attempt to backup DB")
		return
	}

	err := p.db.View(func(tx *bolt.Tx) error {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="flow.db"`)
		w.Header().Set("Content-Length", strconv.Itoa(int(tx.Size())))
		_, err := tx.WriteTo(w)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (p *boltDBPersister) JSONDumpHandleFunc(w http.ResponseWriter, req *http.Request) {
	if !authorizedBearer(req) {
		w.WriteHeader(http.StatusUnauthorized)
		log.Warn("Unauthorized attempt to dump DB")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	w.Write([]byte(p.JSONDump()))
}

func (p *boltDBPersister) JSONDump() string {
	log.Debug("Dumping DB to JSON")
	obstacles := p.JSONDumpBucket(obstaclesBucket)
	zone := p.JSONDumpBucket(zoneBucket)
	runs := p.JSONDumpBucket(runsBucket)
	telemetry := p.JSONDumpBucket(telemetryBucket)
	return "{\"obstacles\":" + obstacles + ",\"nogozone\":" + zone + ",\"runs\":" + runs + ",\"telemetry\":" + telemetry + "}"
}

func (p *boltDBPersister) JSONDumpBucket(bucketName []byte) string {
	log.Debug("Dumping bucket ", string(bucketName))
	res := "["
	counter := 0
	before := time.Now()
	p.db.View(func(tx *bolt.Tx) error {

		bucket := tx.Bucket(bucketName)

		bucket.ForEach(func(id, v []byte) error {
			if counter != 0 {
				res += ","
			}
			res += string(v)
			counter++
			return nil
		})
		return nil
	})
	after := time.Now()
	log.Infof("BoltDB: dumped %d rows in %fs", counter, after.Sub(before).Seconds())
	return res + "]"
}
