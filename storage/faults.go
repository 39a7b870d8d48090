package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"myohand/device"
)

var (
	activePrefix  = []byte("fault/")
	historyPrefix = []byte("history/")
)

// FaultDB 基于 badger 的故障记录存储。
// fault/<id> 保存尚未复位的故障，history/<时间戳>/<id> 保存全部历史。
type FaultDB struct {
	db *badger.DB
}

// OpenFaultDB 打开故障数据库；dir 为空时使用内存模式
func OpenFaultDB(dir string) (*FaultDB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建故障数据目录失败：%w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("打开故障数据库失败：%w", err)
	}
	slog.Info("💾 故障数据库已打开", "dir", dir)
	return &FaultDB{db: db}, nil
}

// Close 关闭数据库
func (s *FaultDB) Close() error {
	return s.db.Close()
}

func activeKey(id int) []byte {
	return append(append([]byte(nil), activePrefix...), strconv.Itoa(id)...)
}

// historyKey 时间戳定长编码，保证按时间顺序迭代
func historyKey(f device.Fault) []byte {
	return fmt.Appendf(append([]byte(nil), historyPrefix...), "%020d/%d", f.At.UnixNano(), f.ActuatorID)
}

// RecordFault 写入未复位故障并追加到历史
func (s *FaultDB) RecordFault(f device.Fault) error {
	value, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("编码故障记录失败：%w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(activeKey(f.ActuatorID), value); err != nil {
			return err
		}
		return txn.Set(historyKey(f), value)
	})
	if err != nil {
		return fmt.Errorf("写入故障记录失败：%w", err)
	}
	return nil
}

// ClearFault 删除执行器的未复位故障，历史保留
func (s *FaultDB) ClearFault(actuatorID int) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(activeKey(actuatorID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("删除故障记录失败：%w", err)
	}
	return nil
}

// Faults 返回所有未复位的故障
func (s *FaultDB) Faults() ([]device.Fault, error) {
	return s.scan(activePrefix)
}

// History 返回最近 limit 条故障历史（按时间先后）；limit <= 0 返回全部
func (s *FaultDB) History(limit int) ([]device.Fault, error) {
	all, err := s.scan(historyPrefix)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *FaultDB) scan(prefix []byte) ([]device.Fault, error) {
	var out []device.Fault
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var f device.Fault
				if err := json.Unmarshal(val, &f); err != nil {
					return fmt.Errorf("解析故障记录 %s 失败：%w", item.Key(), err)
				}
				out = append(out, f)
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
	return out, nil
}
