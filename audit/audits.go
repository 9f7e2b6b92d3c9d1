package audit

import (
	"context"
	"fmt"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/profile"
	"mangaapi/session"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	QueryEntriesFunc   = QueryEntries
	ScheduleResyncFunc = ScheduleResync
)

// QueryEntries is reserved to superusers and to profiles granting view_analytics.
func QueryEntries(reader Reader, q EntryQuery, sec *session.Session) (*PagedEntries, error) {
	if !sec.Authenticated() {
		return nil, bizerror.ErrUnauthenticated
	}
	if !sec.IsSuperuser() {
		ok, err := profile.HasProfilePermissionFunc(sec.Ctx(), dac.SubjectOf(sec), profile.PermViewAnalytics)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, bizerror.ErrForbidden
		}
	}
	entries, total, err := reader.Query(sec.Ctx(), q)
	if err != nil {
		return nil, err
	}
	return &PagedEntries{List: entries, Total: total}, nil
}

var (
	ResyncBatchSize = 500

	resyncLock    sync.Mutex
	resyncRunning bool
)

// ScheduleResync copies every stored entry to the mirror sink in the background.
// It returns false when a run is already in progress.
func ScheduleResync(reader Reader, mirror Sink, sec *session.Session) (bool, error) {
	if !sec.IsSuperuser() {
		return false, bizerror.ErrForbidden
	}

	resyncLock.Lock()
	if resyncRunning {
		resyncLock.Unlock()
		return false, nil
	}
	resyncRunning = true
	resyncLock.Unlock()

	go func() {
		defer func() {
			resyncLock.Lock()
			resyncRunning = false
			resyncLock.Unlock()
		}()
		if err := Resync(context.Background(), reader, mirror); err != nil {
			logrus.Warnf("audit mirror resync failed: %v", err)
		}
	}()
	return true, nil
}

// Resync pages through the stored entries and writes each of them to mirror.
func Resync(ctx context.Context, reader Reader, mirror Sink) (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			err = fmt.Errorf("error on audit mirror resync: %v", ret)
		}
	}()

	synced := 0
	for offset := 0; ; offset += ResyncBatchSize {
		entries, _, err := reader.Query(ctx, EntryQuery{Limit: ResyncBatchSize, Offset: offset})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		for i := range entries {
			if err := mirror.Write(ctx, &entries[i]); err != nil {
				return err
			}
		}
		synced += len(entries)
	}
	logrus.Infof("audit mirror resync: %d entries synced", synced)
	return nil
}
