package redis

import "fmt"

const ns = "parkflow:v1"

func KeyParkingOccupancy(parkingID int64) string {
	return fmt.Sprintf("%s:parking:%d:occupancy", ns, parkingID)
}

func KeyParkingTariffs(parkingID int64) string {
	return fmt.Sprintf("%s:parking:%d:tariffs", ns, parkingID)
}

func KeyParkingRevenue(parkingID int64, day string) string {
	return fmt.Sprintf("%s:parking:%d:revenue:%s", ns, parkingID, day)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelLifecycleEvents() string {
	return ns + ":lifecycle:events"
}
