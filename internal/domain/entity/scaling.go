package entity

import "time"

// NodeGroup is an auto-scaled pool of instances backing a managed container
// cluster (EKS node group, AKS agent pool, GKE node pool instance group).
type NodeGroup struct {
	Name      string `json:"name"`
	ClusterID string `json:"cluster_id"`

	// ScalingGroupIDs are the provider ids of the groups that hold the
	// instances. One node group may span several (one per zone on GCP).
	ScalingGroupIDs []string `json:"scaling_group_ids"`
}

// ScalingGroup is the live membership of one scaling group.
type ScalingGroup struct {
	ID                   string   `json:"id"`
	CurrentInstanceCount int      `json:"current_instance_count"`
	InstanceTypes        []string `json:"instance_types"`
}

// ScalingGroupSample is what the core estimator needs for one group: raw cores
// per instance, live size and the time-averaged size over the window.
type ScalingGroupSample struct {
	CoresPerInstance     []int    `json:"cores_per_instance"`
	CurrentInstanceCount int      `json:"current_instance_count"`
	AverageInstanceCount *float64 `json:"average_instance_count,omitempty"`
	WindowDays           int      `json:"window_days"`
}

// MetricQuery asks for the instance count time series of one scaling group.
type MetricQuery struct {
	GroupID string
	Start   time.Time
	End     time.Time
	Period  time.Duration
}

// MetricSample is one aggregated point of a time series.
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
