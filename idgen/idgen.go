package idgen

import (
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var startTime = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// NewWorker returns a sonyflake worker; a host without a private ip falls back to a machine id derived from nanotime.
func NewWorker() *sonyflake.Sonyflake {
	w := sonyflake.NewSonyflake(sonyflake.Settings{StartTime: startTime})
	if w != nil {
		return w
	}
	logrus.Warn("no private ip address found, fallback machine id is used for id generation")
	machineID := uint16(time.Now().UnixNano() & 0xffff)
	return sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: startTime,
		MachineID: func() (uint16, error) { return machineID, nil },
	})
}

func NextID(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}
