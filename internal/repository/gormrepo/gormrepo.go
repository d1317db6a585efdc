// Package gormrepo is the persistent Repository implementation, backed
// by SQLite through GORM. Grounded in the teacher's internal/db package
// (Init_DB connection-pool tuning, RoomRepository.CheckIn/CheckOut
// transactional style, Detail/RoomInfo models), adapted from the
// teacher's int room ids and gin-era bespoke error maps to the spec's
// string room ids and corerr typed errors.
package gormrepo

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hotelcore/internal/billing"
	"hotelcore/internal/corerr"
	"hotelcore/internal/repository"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

type roomModel struct {
	RoomID           string `gorm:"primaryKey"`
	Status           string `gorm:"type:varchar(20)"`
	Mode             string `gorm:"type:varchar(20)"`
	Speed            string `gorm:"type:varchar(20)"`
	CurrentTemp      float64
	TargetTemp       float64
	InitialTemp      float64
	IsServing        bool
	PoweredOn        bool
	ManualPoweredOff bool
	RatePerNight     float64
}

type detailModel struct {
	ID                string `gorm:"primaryKey"`
	RoomID            string `gorm:"index"`
	Speed             string `gorm:"type:varchar(20)"`
	RatePerMin        float64
	StartTemp         float64
	StartTime         time.Time
	EndTime           time.Time
	LogicStartSeconds int64
	LogicEndSeconds   int64
	Open              bool
	Fee               float64
	TimerID           string
}

type billModel struct {
	ID               uint `gorm:"primaryKey;autoIncrement"`
	RoomID           string `gorm:"index"`
	RecordsJSON      string
	ServiceFeeTotal  float64
	AccommodationFee float64
	MealFeeTotal     float64
	GrandTotal       float64
	GeneratedAt      time.Time
}

type accommodationModel struct {
	RoomID       string `gorm:"primaryKey"`
	CheckIn      time.Time
	CheckOut     time.Time
	RatePerNight float64
	TimerID      string
	Open         bool
}

type mealOrderModel struct {
	ID        string `gorm:"primaryKey"`
	RoomID    string `gorm:"index"`
	Item      string
	Price     float64
	OrderedAt time.Time
}

type timerStateModel struct {
	ID                string `gorm:"primaryKey"`
	Kind              int
	RoomID            string `gorm:"index"`
	Speed             string
	ElapsedSeconds    int64
	RemainingSeconds  int64
	CurrentFee        float64
	TimeSliceEnforced bool
	Active            bool
}

// Store is the GORM-backed Repository.
type Store struct {
	db *gorm.DB
}

// Open connects to a SQLite file at path and migrates the schema,
// mirroring the teacher's Init_DB connection-pool tuning.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, corerr.Internal("gormrepo.Open", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, corerr.Internal("gormrepo.Open", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&roomModel{}, &detailModel{}, &billModel{},
		&accommodationModel{}, &mealOrderModel{}, &timerStateModel{},
	); err != nil {
		return nil, corerr.Internal("gormrepo.Open", err)
	}
	return &Store{db: db}, nil
}

var _ repository.Repository = (*Store)(nil)

func toModel(r *room.Room) roomModel {
	return roomModel{
		RoomID: r.RoomID, Status: string(r.Status), Mode: string(r.Mode), Speed: string(r.Speed),
		CurrentTemp: r.CurrentTemp, TargetTemp: r.TargetTemp, InitialTemp: r.InitialTemp,
		IsServing: r.IsServing, PoweredOn: r.PoweredOn, ManualPoweredOff: r.ManualPoweredOff,
		RatePerNight: r.RatePerNight,
	}
}

func fromModel(m roomModel) *room.Room {
	return &room.Room{
		RoomID: m.RoomID, Status: room.Status(m.Status), Mode: room.Mode(m.Mode), Speed: room.Speed(m.Speed),
		CurrentTemp: m.CurrentTemp, TargetTemp: m.TargetTemp, InitialTemp: m.InitialTemp,
		IsServing: m.IsServing, PoweredOn: m.PoweredOn, ManualPoweredOff: m.ManualPoweredOff,
		RatePerNight: m.RatePerNight,
	}
}

func (s *Store) GetRoom(roomID string) (*room.Room, bool, error) {
	var m roomModel
	err := s.db.Where("room_id = ?", roomID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, corerr.Internal("gormrepo.GetRoom", err)
	}
	return fromModel(m), true, nil
}

func (s *Store) SaveRoom(r *room.Room) error {
	m := toModel(r)
	if err := s.db.Save(&m).Error; err != nil {
		return corerr.Internal("gormrepo.SaveRoom", err)
	}
	return nil
}

func (s *Store) ListRooms() ([]*room.Room, error) {
	var models []roomModel
	if err := s.db.Find(&models).Error; err != nil {
		return nil, corerr.Internal("gormrepo.ListRooms", err)
	}
	out := make([]*room.Room, len(models))
	for i, m := range models {
		out[i] = fromModel(m)
	}
	return out, nil
}

func detailToModel(r billing.DetailRecord) detailModel {
	return detailModel{
		ID: r.ID, RoomID: r.RoomID, Speed: string(r.Speed), RatePerMin: r.RatePerMin, StartTemp: r.StartTemp,
		StartTime: r.StartTime, EndTime: r.EndTime, LogicStartSeconds: r.LogicStartSeconds,
		LogicEndSeconds: r.LogicEndSeconds, Open: r.Open, Fee: r.Fee, TimerID: r.TimerID,
	}
}

func detailFromModel(m detailModel) billing.DetailRecord {
	return billing.DetailRecord{
		ID: m.ID, RoomID: m.RoomID, Speed: room.Speed(m.Speed), RatePerMin: m.RatePerMin, StartTemp: m.StartTemp,
		StartTime: m.StartTime, EndTime: m.EndTime, LogicStartSeconds: m.LogicStartSeconds,
		LogicEndSeconds: m.LogicEndSeconds, Open: m.Open, Fee: m.Fee, TimerID: m.TimerID,
	}
}

func (s *Store) AppendDetail(rec billing.DetailRecord) error {
	m := detailToModel(rec)
	if err := s.db.Create(&m).Error; err != nil {
		return corerr.Internal("gormrepo.AppendDetail", err)
	}
	return nil
}

func (s *Store) UpdateDetail(rec billing.DetailRecord) error {
	m := detailToModel(rec)
	if err := s.db.Save(&m).Error; err != nil {
		return corerr.Internal("gormrepo.UpdateDetail", err)
	}
	return nil
}

func (s *Store) ListDetails(roomID string) ([]billing.DetailRecord, error) {
	var models []detailModel
	if err := s.db.Where("room_id = ?", roomID).Order("start_time").Find(&models).Error; err != nil {
		return nil, corerr.Internal("gormrepo.ListDetails", err)
	}
	out := make([]billing.DetailRecord, len(models))
	for i, m := range models {
		out[i] = detailFromModel(m)
	}
	return out, nil
}

func (s *Store) ListOpenDetail(roomID string) (billing.DetailRecord, bool, error) {
	var m detailModel
	err := s.db.Where("room_id = ? AND open = ?", roomID, true).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.DetailRecord{}, false, nil
	}
	if err != nil {
		return billing.DetailRecord{}, false, corerr.Internal("gormrepo.ListOpenDetail", err)
	}
	return detailFromModel(m), true, nil
}

func (s *Store) ClearDetails(roomID string) error {
	if err := s.db.Where("room_id = ?", roomID).Delete(&detailModel{}).Error; err != nil {
		return corerr.Internal("gormrepo.ClearDetails", err)
	}
	return nil
}

func (s *Store) SaveBill(b billing.Bill) error {
	recordsJSON, err := json.Marshal(b.Records)
	if err != nil {
		return corerr.Internal("gormrepo.SaveBill", err)
	}
	m := billModel{
		RoomID: b.RoomID, RecordsJSON: string(recordsJSON),
		ServiceFeeTotal: b.ServiceFeeTotal, AccommodationFee: b.AccommodationFee,
		MealFeeTotal: b.MealFeeTotal, GrandTotal: b.GrandTotal, GeneratedAt: b.GeneratedAt,
	}
	if err := s.db.Create(&m).Error; err != nil {
		return corerr.Internal("gormrepo.SaveBill", err)
	}
	return nil
}

func billFromModel(m billModel) (billing.Bill, error) {
	var records []billing.DetailRecord
	if m.RecordsJSON != "" {
		if err := json.Unmarshal([]byte(m.RecordsJSON), &records); err != nil {
			return billing.Bill{}, corerr.Internal("gormrepo.billFromModel", err)
		}
	}
	return billing.Bill{
		RoomID: m.RoomID, Records: records, ServiceFeeTotal: m.ServiceFeeTotal,
		AccommodationFee: m.AccommodationFee, MealFeeTotal: m.MealFeeTotal,
		GrandTotal: m.GrandTotal, GeneratedAt: m.GeneratedAt,
	}, nil
}

func (s *Store) GetLatestBill(roomID string) (billing.Bill, bool, error) {
	var m billModel
	err := s.db.Where("room_id = ?", roomID).Order("generated_at desc").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Bill{}, false, nil
	}
	if err != nil {
		return billing.Bill{}, false, corerr.Internal("gormrepo.GetLatestBill", err)
	}
	b, err := billFromModel(m)
	return b, err == nil, err
}

func (s *Store) ListBills(roomID string) ([]billing.Bill, error) {
	var models []billModel
	if err := s.db.Where("room_id = ?", roomID).Order("generated_at").Find(&models).Error; err != nil {
		return nil, corerr.Internal("gormrepo.ListBills", err)
	}
	out := make([]billing.Bill, 0, len(models))
	for _, m := range models {
		b, err := billFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) OpenOrder(o repository.AccommodationOrder) error {
	m := accommodationModel{
		RoomID: o.RoomID, CheckIn: o.CheckIn, CheckOut: o.CheckOut,
		RatePerNight: o.RatePerNight, TimerID: o.TimerID, Open: true,
	}
	if err := s.db.Save(&m).Error; err != nil {
		return corerr.Internal("gormrepo.OpenOrder", err)
	}
	return nil
}

func (s *Store) GetOpenOrder(roomID string) (repository.AccommodationOrder, bool, error) {
	var m accommodationModel
	err := s.db.Where("room_id = ? AND open = ?", roomID, true).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.AccommodationOrder{}, false, nil
	}
	if err != nil {
		return repository.AccommodationOrder{}, false, corerr.Internal("gormrepo.GetOpenOrder", err)
	}
	return repository.AccommodationOrder{
		RoomID: m.RoomID, CheckIn: m.CheckIn, CheckOut: m.CheckOut,
		RatePerNight: m.RatePerNight, TimerID: m.TimerID, Open: m.Open,
	}, true, nil
}

func (s *Store) CloseOrder(roomID string, checkOut time.Time) (repository.AccommodationOrder, error) {
	var out repository.AccommodationOrder
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var m accommodationModel
		if err := tx.Where("room_id = ? AND open = ?", roomID, true).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return corerr.NotFound("gormrepo.CloseOrder", "no open order for "+roomID)
			}
			return err
		}
		m.Open = false
		m.CheckOut = checkOut
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = repository.AccommodationOrder{
			RoomID: m.RoomID, CheckIn: m.CheckIn, CheckOut: m.CheckOut,
			RatePerNight: m.RatePerNight, TimerID: m.TimerID, Open: m.Open,
		}
		return nil
	})
	if err != nil {
		var ce *corerr.Error
		if errors.As(err, &ce) {
			return repository.AccommodationOrder{}, ce
		}
		return repository.AccommodationOrder{}, corerr.Internal("gormrepo.CloseOrder", err)
	}
	return out, nil
}

func (s *Store) AddMealOrder(o repository.MealOrder) error {
	m := mealOrderModel{ID: o.ID, RoomID: o.RoomID, Item: o.Item, Price: o.Price, OrderedAt: o.OrderedAt}
	if err := s.db.Create(&m).Error; err != nil {
		return corerr.Internal("gormrepo.AddMealOrder", err)
	}
	return nil
}

func (s *Store) ListMealOrders(roomID string) ([]repository.MealOrder, error) {
	var models []mealOrderModel
	if err := s.db.Where("room_id = ?", roomID).Order("ordered_at").Find(&models).Error; err != nil {
		return nil, corerr.Internal("gormrepo.ListMealOrders", err)
	}
	out := make([]repository.MealOrder, len(models))
	for i, m := range models {
		out[i] = repository.MealOrder{ID: m.ID, RoomID: m.RoomID, Item: m.Item, Price: m.Price, OrderedAt: m.OrderedAt}
	}
	return out, nil
}

func (s *Store) ClearMealOrders(roomID string) error {
	if err := s.db.Where("room_id = ?", roomID).Delete(&mealOrderModel{}).Error; err != nil {
		return corerr.Internal("gormrepo.ClearMealOrders", err)
	}
	return nil
}

func (s *Store) SaveTimerState(st timer.State) error {
	m := timerStateModel{
		ID: st.ID, Kind: int(st.Kind), RoomID: st.RoomID, Speed: string(st.Speed),
		ElapsedSeconds: st.ElapsedSeconds, RemainingSeconds: st.RemainingSeconds,
		CurrentFee: st.CurrentFee, TimeSliceEnforced: st.TimeSliceEnforced, Active: st.Active,
	}
	if err := s.db.Save(&m).Error; err != nil {
		return corerr.Internal("gormrepo.SaveTimerState", err)
	}
	return nil
}

func (s *Store) ListTimerStates() ([]timer.State, error) {
	var models []timerStateModel
	if err := s.db.Find(&models).Error; err != nil {
		return nil, corerr.Internal("gormrepo.ListTimerStates", err)
	}
	out := make([]timer.State, len(models))
	for i, m := range models {
		out[i] = timer.State{
			ID: m.ID, Kind: timer.Kind(m.Kind), RoomID: m.RoomID, Speed: room.Speed(m.Speed),
			ElapsedSeconds: m.ElapsedSeconds, RemainingSeconds: m.RemainingSeconds,
			CurrentFee: m.CurrentFee, TimeSliceEnforced: m.TimeSliceEnforced, Active: m.Active,
		}
	}
	return out, nil
}

func (s *Store) DeleteTimerState(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&timerStateModel{}).Error; err != nil {
		return corerr.Internal("gormrepo.DeleteTimerState", err)
	}
	return nil
}
