package dto

import "time"

type CreateGeofenceRequest struct {
	Name         string   `json:"name" binding:"required"`
	CenterLat    *float64 `json:"center_lat" binding:"required"`
	CenterLon    *float64 `json:"center_lon" binding:"required"`
	RadiusMeters float64  `json:"radius_meters" binding:"required,gt=0"`
	AlertOnEnter *bool    `json:"alert_on_enter"`
	AlertOnExit  *bool    `json:"alert_on_exit"`
}

type GeofenceResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	CenterLat    float64   `json:"center_lat"`
	CenterLon    float64   `json:"center_lon"`
	RadiusMeters float64   `json:"radius_meters"`
	AlertOnEnter bool      `json:"alert_on_enter"`
	AlertOnExit  bool      `json:"alert_on_exit"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListGeofencesResponse struct {
	Geofences []GeofenceResponse `json:"geofences"`
	Count     int                `json:"count"`
}
