package rtdb

import "fmt"

// Path layout mirrors the store hierarchy:
// users/{uid}/devices/{deviceKey}/waterLevelHistory/{entryKey} and so on.

func UsersPath() string {
	return "users"
}

func UserDevicesPath(uid string) string {
	return fmt.Sprintf("users/%s/devices", uid)
}

func DevicePath(uid, deviceKey string) string {
	return fmt.Sprintf("users/%s/devices/%s", uid, deviceKey)
}

func WaterLevelHistoryPath(uid, deviceKey string) string {
	return fmt.Sprintf("users/%s/devices/%s/waterLevelHistory", uid, deviceKey)
}

func WasteBinHistoryPath(uid, deviceKey string) string {
	return fmt.Sprintf("users/%s/devices/%s/wasteBinHistory", uid, deviceKey)
}

func UserContactPath(uid string) string {
	return fmt.Sprintf("users/%s/settings/contact", uid)
}

func UserNotificationsPath(uid string) string {
	return fmt.Sprintf("users/%s/notifications", uid)
}

func TokenPath(token string) string {
	return fmt.Sprintf("tokens/%s", token)
}
